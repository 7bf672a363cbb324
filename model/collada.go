// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"github.com/devblok/vkframe/util/collada"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// ImportColladaObject reads the first geometry of a Collada document and
// converts its triangles to an unindexed mesh. Normals and texture
// coordinates are optional, missing ones are left zero.
func ImportColladaObject(fileContents []byte) (*Mesh, error) {
	doc, err := collada.Decode(fileContents)
	if err != nil {
		return nil, err
	}
	if len(doc.Geometries) == 0 {
		return nil, errors.New("collada: document has no geometry")
	}

	mesh := &doc.Geometries[0].Mesh
	positions, posOffset, ok := mesh.SemanticSource(collada.SemanticPosition)
	if !ok {
		return nil, errors.New("collada: mesh has no positions")
	}
	normals, normOffset, hasNormals := mesh.SemanticSource(collada.SemanticNormal)
	uvs, uvOffset, hasUVs := mesh.SemanticSource(collada.SemanticTexCoord)

	stride := mesh.Triangles.Stride()
	index := mesh.Triangles.Index
	if len(index)%(stride*3) != 0 {
		return nil, errors.Errorf("collada: %d indices do not form whole triangles of stride %d", len(index), stride)
	}

	vertices := make([]Vertex, 0, len(index)/stride)
	for corner := 0; corner+stride <= len(index); corner += stride {
		at := index[corner : corner+stride]

		var vert Vertex
		pos := positions.Element(at[posOffset])
		if len(pos) < 3 {
			return nil, errors.Errorf("collada: position %d out of range", at[posOffset])
		}
		vert.Pos = glm.Vec3{pos[0], pos[1], pos[2]}

		if hasNormals {
			if n := normals.Element(at[normOffset]); len(n) >= 3 {
				vert.Normal = glm.Vec3{n[0], n[1], n[2]}
			}
		}
		if hasUVs {
			// Collada has v pointing up, images have it pointing down
			if uv := uvs.Element(at[uvOffset]); len(uv) >= 2 {
				vert.UV = glm.Vec2{uv[0], 1 - uv[1]}
			}
		}
		vertices = append(vertices, vert)
	}

	return NewMesh(vertices, nil), nil
}
