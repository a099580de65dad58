package domain

import "fmt"

// Kind distinguishes the two credential families. It doubles as the "type"
// discriminator in the QR wire payload.
type Kind string

const (
	KindAsset   Kind = "asset"
	KindVehicle Kind = "vehicle"
)

// ParseKind validates and returns a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAsset, KindVehicle:
		return k, nil
	default:
		return "", fmt.Errorf("unknown credential kind: %s", s)
	}
}

func (k Kind) String() string { return string(k) }

// IsValid reports whether the kind is one of the known credential families.
func (k Kind) IsValid() bool {
	return k == KindAsset || k == KindVehicle
}
