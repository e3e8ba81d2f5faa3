package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facefx/internal/inference"
)

// Landmark106 detects 106 facial landmarks using insightface's 2d106det model
type Landmark106 struct {
	session   *inference.Session
	inputSize int
	inputMean float64
	inputStd  float64
}

// NewLandmark106 creates a new 106-point landmark detector
func NewLandmark106(modelPath string, opts inference.SessionOptions) (*Landmark106, error) {
	session, err := inference.NewSession(modelPath, []string{"data"}, []string{"fc1"}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark session: %w", err)
	}

	return &Landmark106{
		session:   session,
		inputSize: 192,
		inputMean: 127.5,
		inputStd:  128.0,
	}, nil
}

// Detect fills face.Landmarks106 from a BGR image
func (l *Landmark106) Detect(img gocv.Mat, face *Face) error {
	centerX, centerY, scale := l.crop(face.BoundingBox)

	M := l.transformMatrix(centerX, centerY, scale)
	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, M, image.Pt(l.inputSize, l.inputSize))
	M.Close()

	blob := gocv.BlobFromImage(aligned, 1.0/l.inputStd, image.Pt(l.inputSize, l.inputSize),
		gocv.NewScalar(l.inputMean, l.inputMean, l.inputMean, 0), true, false)
	defer blob.Close()

	floatData, err := blob.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("failed to read input blob: %w", err)
	}
	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(l.inputSize), int64(l.inputSize)}, floatData)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inference.Release(inputTensor)

	// (1, 212) = 106 landmarks * 2 coords
	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 212})
	if err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer inference.Release(outputTensor)

	if err := l.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return fmt.Errorf("landmark inference failed: %w", err)
	}

	landmarks := l.postprocess(outputTensor.GetData(), centerX, centerY, scale)
	face.Landmarks106 = &landmarks
	return nil
}

// crop returns the crop centre and the scale mapping a 1.5x expanded box
// onto the model input.
func (l *Landmark106) crop(bbox BoundingBox) (cx, cy, scale float32) {
	c := bbox.Center()
	maxDim := max(bbox.Width(), bbox.Height())
	return c.X, c.Y, float32(l.inputSize) / (maxDim * 1.5)
}

// transformMatrix creates the scale and translate affine for the crop
func (l *Landmark106) transformMatrix(centerX, centerY, scale float32) gocv.Mat {
	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	half := float64(l.inputSize) / 2
	M.SetDoubleAt(0, 0, float64(scale))
	M.SetDoubleAt(0, 1, 0)
	M.SetDoubleAt(0, 2, half-float64(centerX*scale))
	M.SetDoubleAt(1, 0, 0)
	M.SetDoubleAt(1, 1, float64(scale))
	M.SetDoubleAt(1, 2, half-float64(centerY*scale))
	return M
}

// postprocess maps model output in [-1, 1] back to image coordinates
func (l *Landmark106) postprocess(output []float32, centerX, centerY, scale float32) Landmarks106 {
	var landmarks Landmarks106
	halfSize := float32(l.inputSize) / 2

	for i := range landmarks {
		x := (output[i*2] + 1) * halfSize
		y := (output[i*2+1] + 1) * halfSize
		landmarks[i] = Point{
			X: (x-halfSize)/scale + centerX,
			Y: (y-halfSize)/scale + centerY,
		}
	}
	return landmarks
}

// Close releases detector resources
func (l *Landmark106) Close() error {
	return l.session.Destroy()
}
