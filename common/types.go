// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "strings"

// MaterialType is the render-order class of a mesh. Opaque sorts before Transparent.
type MaterialType uint32

const (
	MaterialOpaque MaterialType = iota
	MaterialTransparent
)

// MaterialTypes lists every material type in draw order.
var MaterialTypes = []MaterialType{MaterialOpaque, MaterialTransparent}

func (m MaterialType) String() string {
	switch m {
	case MaterialOpaque:
		return "opaque"
	case MaterialTransparent:
		return "transparent"
	default:
		return "unknown"
	}
}

// ParseMaterialType maps a name back to its MaterialType, ignoring case.
//
// Parameters:
//   - s: "opaque" or "transparent"
//
// Returns:
//   - MaterialType: the parsed type
//   - bool: false when s names no material type
func ParseMaterialType(s string) (MaterialType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "opaque":
		return MaterialOpaque, true
	case "transparent":
		return MaterialTransparent, true
	}
	return MaterialOpaque, false
}

// NoTexture marks an unused slot in a TextureSet.
const NoTexture int32 = -1

// TextureSet holds the texture-array indices a mesh samples, in GPU order. Unused slots hold NoTexture.
type TextureSet struct {
	Albedo    int32
	Normal    int32
	Metalness int32
	Roughness int32
	Occlusion int32
	Emissive  int32
}

// EmptyTextureSet returns a TextureSet with every slot set to NoTexture.
func EmptyTextureSet() TextureSet {
	return TextureSet{NoTexture, NoTexture, NoTexture, NoTexture, NoTexture, NoTexture}
}

// TextureSetFromSlice builds a TextureSet from slots in GPU order.
func TextureSetFromSlice(s [6]int32) TextureSet {
	return TextureSet{s[0], s[1], s[2], s[3], s[4], s[5]}
}

// Offset returns the set with every used slot shifted by base, used when per-model texture
// indices are merged into a scene-wide texture array.
func (t TextureSet) Offset(base int32) TextureSet {
	s := t.Slice()
	for i, v := range s {
		if v != NoTexture {
			s[i] = v + base
		}
	}
	return TextureSetFromSlice(s)
}

// Slice returns the slots in GPU order.
func (t TextureSet) Slice() [6]int32 {
	return [6]int32{t.Albedo, t.Normal, t.Metalness, t.Roughness, t.Occlusion, t.Emissive}
}
