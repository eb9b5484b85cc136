package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelfarm.ai/internal/protocol"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asAny round-trips a Go message through JSON so the schema sees exactly
// what goes over the wire.
func asAny(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateOutgoing(t *testing.T) {
	helloSchema := compileSchema(t, "hello.schema.json")
	actSchema := compileSchema(t, "act.schema.json")

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       "farmbot",
		Capabilities:    protocol.HelloCapabilities{DeltaVoxels: true, MaxQueue: 16},
		Auth:            &protocol.HelloAuth{Token: "resume_1"},
	}
	if err := helloSchema.Validate(asAny(t, hello)); err != nil {
		t.Fatalf("hello: %v", err)
	}

	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            12,
		AgentID:         "A1",
		Instants: []protocol.InstantReq{
			{ID: "I_1", Type: protocol.InstantEquip, ItemID: "WHEAT_SEEDS", Hand: protocol.HandMain},
			{ID: "I_2", Type: protocol.InstantSwing, Hand: protocol.HandLeft},
			{ID: "I_3", Type: protocol.InstantWhisper, To: "A2", Text: "Let us farm!"},
		},
		Tasks: []protocol.TaskReq{
			{ID: "K_1", Type: protocol.TaskMoveTo, Target: [3]int{4, 0, 4}, Tolerance: 1},
			{ID: "K_2", Type: protocol.TaskMine, BlockPos: [3]int{1, 0, 1}},
			{ID: "K_3", Type: protocol.TaskPlace, BlockPos: [3]int{1, 0, 2}, ItemID: "WHEAT_SEEDS", Face: [3]int{0, 1, 0}},
		},
		Cancel: []string{"K_0"},
	}
	if err := actSchema.Validate(asAny(t, act)); err != nil {
		t.Fatalf("act: %v", err)
	}

	bad := asAny(t, protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		AgentID:         "A1",
		Tasks:           []protocol.TaskReq{{ID: "K_9", Type: "TELEPORT"}},
	})
	if err := actSchema.Validate(bad); err == nil {
		t.Fatalf("expected unknown task type to be rejected")
	}
}

func TestSchemas_ValidateIncoming(t *testing.T) {
	welcomeSchema := compileSchema(t, "welcome.schema.json")
	obsSchema := compileSchema(t, "obs.schema.json")

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"0.9",
	  "agent_id":"A1",
	  "resume_token":"resume_world_1_123",
	  "world_params":{"tick_rate_hz":5,"chunk_size":[16,16,16],"height":64,"obs_radius":7,"day_ticks":6000,"seed":1337},
	  "catalogs":{"block_palette":{"digest":"deadbeef","count":12},"item_palette":{"digest":"deadbeef","count":9}}
	}`), &welcome)
	if err := welcomeSchema.Validate(welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}

	var obs any
	_ = json.Unmarshal([]byte(`{
	  "type":"OBS",
	  "protocol_version":"0.9",
	  "tick":3,
	  "agent_id":"A1",
	  "self":{"pos":[0,1,0],"yaw":0,"hp":20,"hunger":20,"status":[]},
	  "inventory":[{"item":"WHEAT_SEEDS","count":12}],
	  "equipment":{"main_hand":"NONE"},
	  "voxels":{"center":[0,1,0],"radius":1,"encoding":"RLE","data":"AhsAAQ==","meta":[{"d":[1,0,0],"v":7}]},
	  "entities":[{"id":"IT1","type":"ITEM","pos":[3,1,0],"item":"WHEAT","count":1}],
	  "events":[{"t":3,"type":"TASK_DONE","task_id":"K_1","kind":"MINE"}],
	  "tasks":[]
	}`), &obs)
	if err := obsSchema.Validate(obs); err != nil {
		t.Fatalf("obs: %v", err)
	}

	var decoded protocol.ObsMsg
	b, _ := json.Marshal(obs)
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("decode obs: %v", err)
	}
	if len(decoded.Voxels.Meta) != 1 || decoded.Voxels.Meta[0].V != 7 {
		t.Fatalf("meta not decoded: %+v", decoded.Voxels.Meta)
	}
	if decoded.Events[0].Type() != protocol.EventTaskDone {
		t.Fatalf("event type=%q", decoded.Events[0].Type())
	}
}
