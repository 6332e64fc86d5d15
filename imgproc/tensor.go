package imgproc

import "fmt"

// Tensor is a dense float32 array with an explicit shape, the host side form
// of a batch before it is handed to a device.
type Tensor struct {
	Shape []int
	Data  []float32
}

// ToBatchedTensor stacks equally sized images into a [N, 1, H, W] tensor.
func ToBatchedTensor(images []Image) (*Tensor, error) {
	if len(images) == 0 {
		return &Tensor{Shape: []int{0, 1, 0, 0}}, nil
	}
	h, w := images[0].Height, images[0].Width
	plane := h * w
	data := make([]float32, len(images)*plane)
	for i, img := range images {
		if img.Height != h || img.Width != w {
			return nil, fmt.Errorf("%w: image %d is %dx%d, expected %dx%d", ErrShapeMismatch, i, img.Height, img.Width, h, w)
		}
		copy(data[i*plane:], img.Pix)
	}
	return &Tensor{Shape: []int{len(images), 1, h, w}, Data: data}, nil
}

// Len is the number of elements implied by Shape.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Bytes is the size of the float32 payload.
func (t *Tensor) Bytes() int {
	return 4 * len(t.Data)
}

// Image copies the i-th [1, H, W] plane of a batched tensor back into an Image.
func (t *Tensor) Image(i int) (Image, error) {
	if len(t.Shape) != 4 || t.Shape[1] != 1 {
		return Image{}, fmt.Errorf("%w: tensor shape %v is not [N, 1, H, W]", ErrShapeMismatch, t.Shape)
	}
	if i < 0 || i >= t.Shape[0] {
		return Image{}, fmt.Errorf("imgproc: plane %d out of range [0, %d)", i, t.Shape[0])
	}
	m := NewImage(t.Shape[2], t.Shape[3])
	plane := m.Height * m.Width
	copy(m.Pix, t.Data[i*plane:(i+1)*plane])
	return m, nil
}
