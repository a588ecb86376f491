package packet

import "time"

// ObjectInfo is the subset of an occupant sent in a spawn buffer.
type ObjectInfo struct {
	ID       uint64
	Kind     uint8
	Template uint32
	Name     string
	X, Y     float64
	DestX    float64
	DestY    float64
	ETA      time.Duration
	Owner    uint64 // bonus box owner, 0 otherwise
}

// ConstantInfo describes a portal or station.
type ConstantInfo struct {
	ID        uint64
	Kind      uint8
	Name      string
	X, Y      float64
	TargetMap int32 // portals only
}

// InitInfo is everything a client needs to rebuild its view after a jump.
type InitInfo struct {
	ID    uint64
	Name  string
	MapID int32
	X, Y  float64
	Speed float64
}

func (c *Codec) Spawn(o ObjectInfo) []byte {
	w := c.NewWriter(S_OPCODE_SPAWN)
	w.WriteQ(o.ID)
	w.WriteC(o.Kind)
	w.WriteD(int32(o.Template))
	w.WriteS(o.Name)
	w.WriteF(o.X)
	w.WriteF(o.Y)
	w.WriteF(o.DestX)
	w.WriteF(o.DestY)
	w.WriteD(int32(o.ETA / time.Millisecond))
	w.WriteQ(o.Owner)
	return w.Bytes()
}

func (c *Codec) RemoveObject(id uint64) []byte {
	w := c.NewWriter(S_OPCODE_REMOVE_OBJECT)
	w.WriteQ(id)
	return w.Bytes()
}

// Move announces a new destination; clients interpolate with the eta.
func (c *Codec) Move(id uint64, destX, destY float64, eta time.Duration) []byte {
	w := c.NewWriter(S_OPCODE_MOVE)
	w.WriteQ(id)
	w.WriteF(destX)
	w.WriteF(destY)
	w.WriteD(int32(eta / time.Millisecond))
	return w.Bytes()
}

func (c *Codec) Constant(o ConstantInfo) []byte {
	w := c.NewWriter(S_OPCODE_CONSTANT)
	w.WriteQ(o.ID)
	w.WriteC(o.Kind)
	w.WriteS(o.Name)
	w.WriteF(o.X)
	w.WriteF(o.Y)
	w.WriteD(o.TargetMap)
	return w.Bytes()
}

func (c *Codec) InitState(i InitInfo) []byte {
	w := c.NewWriter(S_OPCODE_INIT_STATE)
	w.WriteQ(i.ID)
	w.WriteS(i.Name)
	w.WriteD(i.MapID)
	w.WriteF(i.X)
	w.WriteF(i.Y)
	w.WriteF(i.Speed)
	return w.Bytes()
}

func (c *Codec) JumpStart(mapID int32, delay time.Duration) []byte {
	w := c.NewWriter(S_OPCODE_JUMP_START)
	w.WriteD(mapID)
	w.WriteD(int32(delay / time.Millisecond))
	return w.Bytes()
}

// Opcode returns the opcode byte of a built buffer, or 0 for an empty one.
func Opcode(buf []byte) byte {
	if len(buf) == 0 {
		return 0
	}
	return buf[0]
}
