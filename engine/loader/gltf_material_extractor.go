package loader

import (
	"github.com/qmuntal/gltf"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// gltfMaterialExtractor resolves the render-order class and texture indices of glTF materials.
type gltfMaterialExtractor struct {
	doc *gltf.Document
}

func newGLTFMaterialExtractor(doc *gltf.Document) *gltfMaterialExtractor {
	return &gltfMaterialExtractor{doc: doc}
}

// Material returns the material type and texture set of a primitive.
// A mesh is Transparent when its name says so or its material blends (alphaMode BLEND).
// Texture indices are document texture indices, local to the model.
//
// Parameters:
//   - materialIndex: the primitive's material index, or nil
//   - meshName: the name of the owning mesh
//
// Returns:
//   - common.MaterialType: the render-order class
//   - common.TextureSet: the texture indices, NoTexture where unused
func (e *gltfMaterialExtractor) Material(materialIndex *int, meshName string) (common.MaterialType, common.TextureSet) {
	materialType := model.MaterialFromName(meshName)
	textures := common.EmptyTextureSet()
	if materialIndex == nil || *materialIndex < 0 || *materialIndex >= len(e.doc.Materials) {
		return materialType, textures
	}

	mat := e.doc.Materials[*materialIndex]
	if mat.AlphaMode == gltf.AlphaBlend || model.MaterialFromName(mat.Name) == common.MaterialTransparent {
		materialType = common.MaterialTransparent
	}

	if pbr := mat.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorTexture != nil {
			textures.Albedo = e.texture(pbr.BaseColorTexture.Index)
		}
		// glTF packs metalness (B) and roughness (G) in one texture.
		if pbr.MetallicRoughnessTexture != nil {
			textures.Metalness = e.texture(pbr.MetallicRoughnessTexture.Index)
			textures.Roughness = textures.Metalness
		}
	}
	if mat.NormalTexture != nil && mat.NormalTexture.Index != nil {
		textures.Normal = e.texture(*mat.NormalTexture.Index)
	}
	if mat.OcclusionTexture != nil && mat.OcclusionTexture.Index != nil {
		textures.Occlusion = e.texture(*mat.OcclusionTexture.Index)
	}
	if mat.EmissiveTexture != nil {
		textures.Emissive = e.texture(mat.EmissiveTexture.Index)
	}
	return materialType, textures
}

func (e *gltfMaterialExtractor) texture(index int) int32 {
	if index < 0 || index >= len(e.doc.Textures) {
		return common.NoTexture
	}
	return int32(index)
}
