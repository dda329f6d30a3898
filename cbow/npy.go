package cbow

import (
	"fmt"
	"io"
	"os"

	"github.com/FilippoRomeo/wordembed/internal/atomicfile"
	"github.com/sbinet/npyio"
	"github.com/unixpickle/essentials"
)

// WriteNPY writes a row-major float32 matrix in the NumPy
// .npy format.
func WriteNPY(path string, rows, cols int, data []float32) error {
	if len(data) != rows*cols {
		return fmt.Errorf("write %s: expected %d values but got %d", path, rows*cols, len(data))
	}
	return atomicfile.Write(path, func(w io.Writer) error {
		enc, err := npyio.NewWriter(w)
		if err != nil {
			return err
		}
		enc.Header.Descr.Shape = []int{rows, cols}
		return enc.Write(data)
	})
}

// ReadNPY reads a matrix written by WriteNPY.
func ReadNPY(path string) (rows, cols int, data []float32, err error) {
	defer essentials.AddCtxTo("read "+path, &err)
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()
	dec, err := npyio.NewReader(f)
	if err != nil {
		return 0, 0, nil, err
	}
	descr := dec.Header.Descr
	if len(descr.Shape) != 2 || descr.Fortran || descr.Type != "<f4" {
		return 0, 0, nil, fmt.Errorf("unsupported array: %s with shape %v", descr.Type, descr.Shape)
	}
	if err := dec.Read(&data); err != nil {
		return 0, 0, nil, err
	}
	return descr.Shape[0], descr.Shape[1], data, nil
}
