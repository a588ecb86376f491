package packet

// Server → client opcodes emitted by the simulation core.
const (
	S_OPCODE_INIT_STATE    byte = 0x01 // full map/ship state after login or jump
	S_OPCODE_SPAWN         byte = 0x10 // an occupant entered view
	S_OPCODE_REMOVE_OBJECT byte = 0x11 // an occupant left view
	S_OPCODE_MOVE          byte = 0x12 // destination + eta rebroadcast
	S_OPCODE_CONSTANT      byte = 0x13 // portal or station, sent once per map entry
	S_OPCODE_JUMP_START    byte = 0x20 // jump queued, countdown started
)
