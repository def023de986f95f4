package models

import (
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/zonegraph/spatial"
	"github.com/golang/geo/r3"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeSceneFile = "scene_file_invalid"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func PointFromVector(v r3.Vector) Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

func (p Point) Vector() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

type RoomDescription struct {
	Name          string `json:"name"`
	Min           Point  `json:"min"`
	Max           Point  `json:"max"`
	OpenToOutside bool   `json:"open_to_outside"`
	Openings      []int  `json:"openings,omitempty"`
}

type InteriorDescription struct {
	Name  string            `json:"name"`
	Rooms []RoomDescription `json:"rooms"`
}

type EntityDescription struct {
	Name     string `json:"name"`
	Position Point  `json:"position"`
	Extents  Point  `json:"extents"`
}

type MirrorDescription struct {
	Name     string `json:"name"`
	Position Point  `json:"position"`
	Normal   Point  `json:"normal"`
	Extents  Point  `json:"extents"`
}

// SceneFile describes the objects a scene starts with.
type SceneFile struct {
	Interiors []InteriorDescription `json:"interiors"`
	Mirrors   []MirrorDescription   `json:"mirrors"`
	Entities  []EntityDescription   `json:"entities"`
}

func LoadSceneFile(filename string) (SceneFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return SceneFile{}, errors.New("reading scene file failed").
			WithTag("filename", filename).
			Wrap(err)
	}

	f, err := ParseSceneFile(data)
	if err != nil {
		return SceneFile{}, errors.New("parsing scene file failed").
			WithTag("filename", filename).
			Wrap(err)
	}
	return f, nil
}

func ParseSceneFile(data []byte) (SceneFile, error) {
	var f SceneFile
	if err := json.Unmarshal(data, &f); err != nil {
		return SceneFile{}, errors.New("invalid scene file json").
			WithType(ErrTypeSceneFile).
			Wrap(err)
	}
	return f, nil
}

// Populate adds the described objects to s. Interiors are added first so
// that the other objects are zoned into their rooms right away.
func (f SceneFile) Populate(s *Scene) error {
	for _, desc := range f.Interiors {
		rooms := make([]Room, 0, len(desc.Rooms))
		for _, r := range desc.Rooms {
			rooms = append(rooms, Room{
				Name:          r.Name,
				Box:           spatial.NewBox(r.Min.Vector(), r.Max.Vector()),
				OpenToOutside: r.OpenToOutside,
				Openings:      r.Openings,
			})
		}

		interior, err := NewInterior(desc.Name, rooms)
		if err != nil {
			return err
		}
		if err := s.AddObject(interior); err != nil {
			return err
		}
	}

	for _, desc := range f.Mirrors {
		normal := desc.Normal.Vector()
		if normal.Norm2() == 0 {
			return errors.New("mirror without normal").
				WithType(ErrTypeSceneFile).
				WithTag("name", desc.Name)
		}

		m := NewMirror(desc.Name, desc.Position.Vector(), normal, desc.Extents.Vector())
		if err := s.AddObject(m); err != nil {
			return err
		}
	}

	for _, desc := range f.Entities {
		e := NewEntity(desc.Name, PoseAt(desc.Position.Vector()), desc.Extents.Vector())
		if err := s.AddObject(e); err != nil {
			return err
		}
	}
	return nil
}
