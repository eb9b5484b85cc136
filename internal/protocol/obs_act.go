package protocol

type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`
	WorldID         string `json:"world_id,omitempty"`

	Self      SelfObs      `json:"self"`
	Inventory []ItemStack  `json:"inventory"`
	Equipment EquipmentObs `json:"equipment"`

	Voxels   VoxelsObs   `json:"voxels"`
	Entities []EntityObs `json:"entities"`
	Events   []Event     `json:"events"`
	Tasks    []TaskObs   `json:"tasks"`
}

type SelfObs struct {
	Pos    [3]int   `json:"pos"`
	Yaw    int      `json:"yaw"`
	HP     int      `json:"hp"`
	Hunger int      `json:"hunger"`
	Status []string `json:"status"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type EquipmentObs struct {
	MainHand string `json:"main_hand"`
}

// Voxel encodings.
const (
	EncodingRLE   = "RLE"
	EncodingDelta = "DELTA"
)

type VoxelsObs struct {
	Center   [3]int         `json:"center"`
	Radius   int            `json:"radius"`
	Encoding string         `json:"encoding"` // "RLE" or "DELTA"
	Data     string         `json:"data,omitempty"`
	Ops      []VoxelDeltaOp `json:"ops,omitempty"`

	// Meta carries per-voxel state such as crop growth stage. It is always
	// complete for the current window, regardless of Encoding.
	Meta []VoxelMeta `json:"meta,omitempty"`
}

type VoxelDeltaOp struct {
	D [3]int `json:"d"` // delta from center (dx,dy,dz)
	B uint16 `json:"b"` // block palette id
}

type VoxelMeta struct {
	D [3]int `json:"d"` // delta from center (dx,dy,dz)
	V int    `json:"v"`
}

// Entity types.
const (
	EntityAgent = "AGENT"
	EntityItem  = "ITEM"
)

type EntityObs struct {
	ID   string   `json:"id"`
	Type string   `json:"type"` // "AGENT", "ITEM", ...
	Pos  [3]int   `json:"pos"`
	Tags []string `json:"tags,omitempty"`

	// Optional payload for specialized entity types (e.g. "ITEM").
	Item  string `json:"item,omitempty"`
	Count int    `json:"count,omitempty"`
}

type Event map[string]interface{}

type TaskObs struct {
	TaskID   string  `json:"task_id"`
	Kind     string  `json:"kind"`
	Progress float64 `json:"progress"`
	Target   [3]int  `json:"target,omitempty"`
	EtaTicks int     `json:"eta_ticks,omitempty"`
}

// Instant and task request types the agent issues.
const (
	InstantWhisper = "WHISPER"
	InstantEquip   = "EQUIP"
	InstantSwing   = "SWING"

	TaskMoveTo = "MOVE_TO"
	TaskMine   = "MINE"
	TaskPlace  = "PLACE"
)

// Hands for EQUIP and SWING.
const (
	HandMain  = "MAIN"
	HandLeft  = "LEFT"
	HandRight = "RIGHT"
)

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
	Tasks           []TaskReq    `json:"tasks,omitempty"`
	Cancel          []string     `json:"cancel,omitempty"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Channel string `json:"channel,omitempty"`
	Text    string `json:"text,omitempty"`
	To      string `json:"to,omitempty"`

	ItemID string `json:"item_id,omitempty"`
	Hand   string `json:"hand,omitempty"`
}

type TaskReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Target    [3]int  `json:"target,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`

	BlockPos [3]int `json:"block_pos,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
	Face     [3]int `json:"face,omitempty"`
}
