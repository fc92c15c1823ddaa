package eutel

import "fmt"

// Generic sparse pixels are stored as (x, y, signal, time) quadruplets
const sparsePixelSize = 4

type SparsePixel struct {
	X      int
	Y      int
	Signal float32
	Time   int
}

// SparsePixels decodes the charge vector of a zero suppressed detector block.
func (td *TrackerData) SparsePixels() ([]SparsePixel, error) {
	if len(td.Charge)%sparsePixelSize != 0 {
		return nil, fmt.Errorf("sensor %d: sparse data length %d is not a multiple of %d",
			td.SensorID, len(td.Charge), sparsePixelSize)
	}
	nPixels := len(td.Charge) / sparsePixelSize
	pixels := make([]SparsePixel, nPixels)
	for i := 0; i < nPixels; i++ {
		values := td.Charge[i*sparsePixelSize : (i+1)*sparsePixelSize]
		pixels[i] = SparsePixel{
			X:      int(values[0]),
			Y:      int(values[1]),
			Signal: values[2],
			Time:   int(values[3]),
		}
	}
	return pixels, nil
}

func EncodeSparsePixels(pixels []SparsePixel) []float32 {
	charge := make([]float32, 0, len(pixels)*sparsePixelSize)
	for _, pixel := range pixels {
		charge = append(charge, float32(pixel.X), float32(pixel.Y), pixel.Signal, float32(pixel.Time))
	}
	return charge
}
