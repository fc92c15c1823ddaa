package eutel

import (
	"encoding/xml"
	"fmt"
	"os"
)

// Geometry describes the pixel matrices of the telescope planes.
type Geometry interface {
	NumLayers() int
	PixelsX(layer int) int
	PixelsY(layer int) int
}

type Layer struct {
	ID      int `db:"LayerID"`
	NPixelX int `db:"NPixelX"`
	NPixelY int `db:"NPixelY"`
}

// LayerLayout is a Geometry backed by a slice of layers. Layers are indexed
// by position, as in the readout order of the data.
type LayerLayout []Layer

func (l LayerLayout) NumLayers() int {
	return len(l)
}

func (l LayerLayout) PixelsX(layer int) int {
	return l[layer].NPixelX
}

func (l LayerLayout) PixelsY(layer int) int {
	return l[layer].NPixelY
}

type gearFile struct {
	XMLName   xml.Name       `xml:"gear"`
	Detectors []gearDetector `xml:"detectors>detector"`
}

type gearDetector struct {
	Name     string      `xml:"name,attr"`
	GearType string      `xml:"geartype,attr"`
	Layers   []gearLayer `xml:"layers>layer"`
}

type gearLayer struct {
	Sensitive gearSensitive `xml:"sensitive"`
}

type gearSensitive struct {
	ID      int `xml:"ID,attr"`
	NPixelX int `xml:"npixelX,attr"`
	NPixelY int `xml:"npixelY,attr"`
}

const siPlanesGearType = "SiPlanesParameters"

// LoadGearFile reads the silicon planes layout from a GEAR XML file.
func LoadGearFile(filename string) (LayerLayout, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	return ParseGear(data)
}

func ParseGear(data []byte) (LayerLayout, error) {
	var gear gearFile
	if err := xml.Unmarshal(data, &gear); err != nil {
		return nil, fmt.Errorf("error parsing GEAR file: %w", err)
	}
	for _, detector := range gear.Detectors {
		if detector.GearType != siPlanesGearType {
			continue
		}
		layout := make(LayerLayout, 0, len(detector.Layers))
		for i, layer := range detector.Layers {
			sensitive := layer.Sensitive
			if sensitive.NPixelX <= 0 || sensitive.NPixelY <= 0 {
				return nil, fmt.Errorf("layer %d: invalid pixel matrix %dx%d", i, sensitive.NPixelX, sensitive.NPixelY)
			}
			layout = append(layout, Layer{
				ID:      sensitive.ID,
				NPixelX: sensitive.NPixelX,
				NPixelY: sensitive.NPixelY,
			})
		}
		if len(layout) == 0 {
			return nil, ErrGeometryUnavailable
		}
		return layout, nil
	}
	return nil, fmt.Errorf("%w: no %s detector in GEAR file", ErrGeometryUnavailable, siPlanesGearType)
}

// MarshalGear writes the layout as a GEAR file with a single SiPlanes detector.
func MarshalGear(layout LayerLayout) ([]byte, error) {
	detector := gearDetector{Name: "SiPlanes", GearType: siPlanesGearType}
	for _, layer := range layout {
		detector.Layers = append(detector.Layers, gearLayer{
			Sensitive: gearSensitive{ID: layer.ID, NPixelX: layer.NPixelX, NPixelY: layer.NPixelY},
		})
	}
	data, err := xml.MarshalIndent(gearFile{Detectors: []gearDetector{detector}}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}
