package protocol

import (
	"errors"
	"math"
	"strings"
	"testing"
)

var codecs = []Codec{JSON, Msgpack}

func TestCodecFor(t *testing.T) {
	tests := []struct {
		subprotocol string
		want        string
	}{
		{"", SubprotocolJSON},
		{SubprotocolJSON, SubprotocolJSON},
		{SubprotocolMsgpack, SubprotocolMsgpack},
		{"unknown", SubprotocolJSON},
	}
	for _, tt := range tests {
		if got := CodecFor(tt.subprotocol).Name(); got != tt.want {
			t.Errorf("CodecFor(%q) = %s, want %s", tt.subprotocol, got, tt.want)
		}
	}
}

func TestJSONWireFieldNames(t *testing.T) {
	rec := PlayerRecord{
		ID:       "p1",
		Position: Vec3{X: 0, Y: 15, Z: 0},
		Rotation: IdentityQuat,
		IsDead:   true,
	}
	data, err := EncodeEvent(JSON, NewPlayerJoined(rec))
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	want := `{"type":"player_joined","payload":{"id":"p1","position":{"x":0,"y":15,"z":0},"rotation":{"x":0,"y":0,"z":0,"w":1},"isDead":true}}`
	if string(data) != want {
		t.Errorf("encoded = %s\nwant      %s", data, want)
	}

	bullet := BulletRecord{ID: "bullet_0", OwnerID: "p1", StartTime: 1000, Life: 5000}
	data, err = EncodeEvent(JSON, NewBulletFired(bullet))
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	for _, key := range []string{`"ownerId":"p1"`, `"startTime":1000`, `"life":5000`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("encoded bullet %s does not contain %s", data, key)
		}
	}
}

func TestJSONPlayerLeftCarriesBareID(t *testing.T) {
	data, err := EncodeEvent(JSON, NewPlayerLeft("abc"))
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	if string(data) != `{"type":"player_left","payload":"abc"}` {
		t.Errorf("encoded = %s", data)
	}
}

func TestCodecInitSelfDecodesOnClient(t *testing.T) {
	players := Snapshot{
		"a": {ID: "a", Position: Vec3{Y: 15}, Rotation: IdentityQuat},
		"b": {ID: "b", Position: Vec3{X: 1, Y: 2, Z: 3}, Rotation: Quat{W: 1}, IsDead: true},
	}
	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := EncodeEvent(c, NewInitSelf("a", players))
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			frame, err := c.Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if frame.Type != TypeInitSelf {
				t.Fatalf("Type = %s, want %s", frame.Type, TypeInitSelf)
			}
			got, err := DecodePayload[InitSelf](frame)
			if err != nil {
				t.Fatalf("DecodePayload failed: %v", err)
			}
			if got.ID != "a" || len(got.Players) != 2 {
				t.Fatalf("decoded = %+v", got)
			}
			if got.Players["b"] != players["b"] {
				t.Errorf("players[b] = %+v, want %+v", got.Players["b"], players["b"])
			}
		})
	}
}

func TestDecodeCommand(t *testing.T) {
	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			update := UpdateIntent{Position: Vec3{X: 1, Y: 2, Z: 3}, Rotation: Quat{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5}}
			cmd := mustDecodeCommand(t, c, TypePlayerUpdate, update)
			if cmd != update {
				t.Errorf("update = %+v, want %+v", cmd, update)
			}

			shoot := ShootIntent{Position: Vec3{Y: 10}, Velocity: Vec3{Z: -50}}
			cmd = mustDecodeCommand(t, c, TypePlayerShoot, shoot)
			if cmd != shoot {
				t.Errorf("shoot = %+v, want %+v", cmd, shoot)
			}

			cmd = mustDecodeCommand(t, c, TypePlayerCollision, CollisionReport{Type: "ground"})
			if cmd != (CollisionReport{Type: "ground"}) {
				t.Errorf("collision = %+v", cmd)
			}
		})
	}
}

func TestDecodeCommand_CollisionWithoutPayload(t *testing.T) {
	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			cmd := mustDecodeCommand(t, c, TypePlayerCollision, nil)
			report, ok := cmd.(CollisionReport)
			if !ok {
				t.Fatalf("command = %T, want CollisionReport", cmd)
			}
			if report.Type != CollisionUnknown {
				t.Errorf("Type = %q, want %q", report.Type, CollisionUnknown)
			}
		})
	}
}

func TestDecodeCommand_CollisionWithUnreadablePayload(t *testing.T) {
	payloads := []struct {
		name    string
		payload any
	}{
		{"string", "ground"},
		{"number", 42},
		{"wrong field type", map[string]int{"type": 1}},
	}
	for _, c := range codecs {
		for _, tt := range payloads {
			t.Run(c.Name()+"/"+tt.name, func(t *testing.T) {
				cmd := mustDecodeCommand(t, c, TypePlayerCollision, tt.payload)
				report, ok := cmd.(CollisionReport)
				if !ok {
					t.Fatalf("command = %T, want CollisionReport", cmd)
				}
				if report.Type != CollisionUnknown {
					t.Errorf("Type = %q, want %q", report.Type, CollisionUnknown)
				}
			})
		}
	}
}

func TestJSONAcceptsCollisionWithBarePayload(t *testing.T) {
	frame, err := JSON.Unmarshal([]byte(`{"type":"player_collision","payload":"ground"}`))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	cmd, err := DecodeCommand(frame)
	if err != nil {
		t.Fatalf("DecodeCommand failed: %v", err)
	}
	if cmd != (CollisionReport{Type: CollisionUnknown}) {
		t.Errorf("command = %+v", cmd)
	}
}

func TestDecodeCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		typ     EventType
		payload any
		want    error
	}{
		{"unknown type", "player_dance", map[string]int{"x": 1}, ErrUnknownType},
		{"server event from client", TypeGameStateUpdate, Snapshot{}, ErrUnknownType},
		{"update without payload", TypePlayerUpdate, nil, ErrInvalidPayload},
		{"shoot with wrong shape", TypePlayerShoot, "bang", ErrInvalidPayload},
	}
	for _, c := range codecs {
		for _, tt := range tests {
			t.Run(c.Name()+"/"+tt.name, func(t *testing.T) {
				data, err := c.Marshal(tt.typ, tt.payload)
				if err != nil {
					t.Fatalf("Marshal failed: %v", err)
				}
				frame, err := c.Unmarshal(data)
				if err != nil {
					t.Fatalf("Unmarshal failed: %v", err)
				}
				_, err = DecodeCommand(frame)
				if !errors.Is(err, tt.want) {
					t.Errorf("DecodeCommand error = %v, want %v", err, tt.want)
				}
			})
		}
	}
}

func TestDecodeCommand_MissingType(t *testing.T) {
	frame, err := JSON.Unmarshal([]byte(`{"payload":{"type":"ground"}}`))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, err := DecodeCommand(frame); !errors.Is(err, ErrMissingType) {
		t.Errorf("expected ErrMissingType, got %v", err)
	}
}

func TestDecodeCommand_RejectsNonFinite(t *testing.T) {
	// JSON は NaN を表現できないため msgpack で検証する
	update := UpdateIntent{Position: Vec3{X: math.NaN()}, Rotation: IdentityQuat}
	data, err := Msgpack.Marshal(TypePlayerUpdate, update)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	frame, err := Msgpack.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, err := DecodeCommand(frame); !errors.Is(err, ErrNonFiniteNumber) {
		t.Errorf("expected ErrNonFiniteNumber, got %v", err)
	}

	shoot := ShootIntent{Velocity: Vec3{Z: math.Inf(1)}}
	data, err = Msgpack.Marshal(TypePlayerShoot, shoot)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	frame, err = Msgpack.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, err := DecodeCommand(frame); !errors.Is(err, ErrNonFiniteNumber) {
		t.Errorf("expected ErrNonFiniteNumber, got %v", err)
	}
}

func TestUnmarshal_InvalidFrames(t *testing.T) {
	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			if _, err := c.Unmarshal(nil); !errors.Is(err, ErrEmptyFrame) {
				t.Errorf("expected ErrEmptyFrame, got %v", err)
			}
			if _, err := c.Unmarshal([]byte{0x81}); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestMarshal_RequiresType(t *testing.T) {
	for _, c := range codecs {
		if _, err := c.Marshal("", nil); !errors.Is(err, ErrMissingType) {
			t.Errorf("%s: expected ErrMissingType, got %v", c.Name(), err)
		}
	}
}

func TestBulletRecord_PositionAt(t *testing.T) {
	b := BulletRecord{
		Position:  Vec3{X: 1, Y: 2, Z: 3},
		Velocity:  Vec3{X: 10, Y: 0, Z: -20},
		StartTime: 1_000,
	}
	got := b.PositionAt(1_500)
	want := Vec3{X: 6, Y: 2, Z: -7}
	if got != want {
		t.Errorf("PositionAt = %+v, want %+v", got, want)
	}
	if b.PositionAt(1_000) != b.Position {
		t.Errorf("PositionAt(start) should equal origin")
	}
}

func TestJSONAcceptsRawClientFrame(t *testing.T) {
	// ブラウザクライアントが送る形そのまま
	raw := `{"type":"player_update","payload":{"position":{"x":1.5,"y":15,"z":-3},"rotation":{"x":0,"y":0.7071,"z":0,"w":0.7071}}}`
	frame, err := JSON.Unmarshal([]byte(raw))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	cmd, err := DecodeCommand(frame)
	if err != nil {
		t.Fatalf("DecodeCommand failed: %v", err)
	}
	update := cmd.(UpdateIntent)
	if update.Position.X != 1.5 || update.Rotation.W != 0.7071 {
		t.Errorf("decoded = %+v", update)
	}
}

func mustDecodeCommand(t *testing.T, c Codec, typ EventType, payload any) Command {
	t.Helper()
	data, err := c.Marshal(typ, payload)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	frame, err := c.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	cmd, err := DecodeCommand(frame)
	if err != nil {
		t.Fatalf("DecodeCommand failed: %v", err)
	}
	return cmd
}
