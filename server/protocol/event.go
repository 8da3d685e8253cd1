package protocol

// Event はサーバーからクライアントへ送る1フレーム分のイベントです。
// Payload は送出後に変更してはいけません。複数セッションのエンコーダーから同時に読まれます。
type Event struct {
	Type    EventType
	Payload any
}

// InitSelf は init_self のペイロードです。
type InitSelf struct {
	ID      string   `json:"id" msgpack:"id"`
	Players Snapshot `json:"players" msgpack:"players"`
}

// PlayerExploded は player_exploded のペイロードです。
type PlayerExploded struct {
	PlayerID string `json:"playerId" msgpack:"playerId"`
	Position Vec3   `json:"position" msgpack:"position"`
}

func NewInitSelf(id string, players Snapshot) Event {
	return Event{Type: TypeInitSelf, Payload: InitSelf{ID: id, Players: players}}
}

func NewPlayerJoined(p PlayerRecord) Event {
	return Event{Type: TypePlayerJoined, Payload: p}
}

func NewPlayerLeft(id string) Event {
	return Event{Type: TypePlayerLeft, Payload: id}
}

func NewBulletFired(b BulletRecord) Event {
	return Event{Type: TypeBulletFired, Payload: b}
}

func NewBulletRemoved(id string) Event {
	return Event{Type: TypeBulletRemoved, Payload: id}
}

func NewPlayerExploded(id string, position Vec3) Event {
	return Event{Type: TypePlayerExploded, Payload: PlayerExploded{PlayerID: id, Position: position}}
}

func NewPlayerReset(p PlayerRecord) Event {
	return Event{Type: TypePlayerReset, Payload: p}
}

func NewPlayerRespawned(p PlayerRecord) Event {
	return Event{Type: TypePlayerRespawned, Payload: p}
}

func NewGameStateUpdate(players Snapshot) Event {
	return Event{Type: TypeGameStateUpdate, Payload: players}
}
