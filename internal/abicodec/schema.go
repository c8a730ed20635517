package abicodec

// Kind is the wire shape of one tuple field.
type Kind int

const (
	KindUint256 Kind = iota
	KindAddress
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindUint256:
		return "uint256"
	case KindAddress:
		return "address"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Field describes one tuple member.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered field layout of a returned struct. Order must follow
// the contract's declared struct.
type Schema []Field

func Uint256(name string) Field { return Field{Name: name, Kind: KindUint256} }
func Address(name string) Field { return Field{Name: name, Kind: KindAddress} }
func String(name string) Field  { return Field{Name: name, Kind: KindString} }
