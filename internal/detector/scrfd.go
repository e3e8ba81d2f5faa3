package detector

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facefx/internal/inference"
)

// SCRFD implements the SCRFD face detector
type SCRFD struct {
	session        *inference.Session
	inputSize      int
	nmsThreshold   float32
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector. inputSize must be a multiple of 32.
func NewSCRFD(modelPath string, inputSize int, nmsThreshold float32, opts inference.SessionOptions) (*SCRFD, error) {
	if inputSize <= 0 || inputSize%32 != 0 {
		return nil, fmt.Errorf("SCRFD input size %d is not a positive multiple of 32", inputSize)
	}

	// SCRFD has 1 input and 9 outputs (3 levels × 3 outputs each: score, bbox, kps)
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	session, err := inference.NewSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:        session,
		inputSize:      inputSize,
		nmsThreshold:   nmsThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2, // anchors per position
	}, nil
}

// Detect finds faces scoring above confThreshold in a BGR image
func (s *SCRFD) Detect(img gocv.Mat, confThreshold float32) ([]Face, error) {
	origHeight := img.Rows()
	origWidth := img.Cols()

	inputBlob, scale := s.preprocess(img)
	defer inputBlob.Close()

	floatData, err := inputBlob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read input blob: %w", err)
	}
	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(s.inputSize), int64(s.inputSize)}, floatData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inference.Release(inputTensor)

	outputs := make([]ort.Value, 9)
	outputTensors := make([]*ort.Tensor[float32], 9)
	defer func() { inference.Release(outputTensors...) }()

	widths := []int64{1, 4, 10} // score, bbox, kps
	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		anchors := int64(fm * fm * s.numAnchors)
		for kind, width := range widths {
			t, err := inference.CreateEmptyTensor[float32]([]int64{anchors, width})
			if err != nil {
				return nil, fmt.Errorf("failed to create output tensor: %w", err)
			}
			outputs[level+3*kind] = t
			outputTensors[level+3*kind] = t
		}
	}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	faces := s.postprocess(outputTensors, confThreshold, scale, origWidth, origHeight)
	return suppress(faces, s.nmsThreshold), nil
}

// preprocess letterboxes the image into the input square and returns an
// NCHW blob normalised to (x - 127.5) / 128 plus the resize scale.
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	height := img.Rows()
	width := img.Cols()

	scale := float32(s.inputSize) / float32(max(height, width))
	newWidth := int(float32(width) * scale)
	newHeight := int(float32(height) * scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	defer padded.Close()
	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	// swapRB converts BGR to RGB on the way into the blob
	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	return blob, scale
}

// postprocess decodes model outputs to faces
func (s *SCRFD) postprocess(outputs []*ort.Tensor[float32], confThreshold, scale float32, origWidth, origHeight int) []Face {
	var faces []Face

	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		st := float32(stride)

		scoreData := outputs[level].GetData()
		bboxData := outputs[level+3].GetData()
		kpsData := outputs[level+6].GetData()

		anchorIdx := 0
		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				for a := 0; a < s.numAnchors; a++ {
					score := sigmoid(scoreData[anchorIdx])

					if score > confThreshold {
						// Anchor center
						cx := (float32(x) + 0.5) * st
						cy := (float32(y) + 0.5) * st

						// Decode bbox (distance to edges)
						b := bboxData[anchorIdx*4:]
						box := BoundingBox{
							X1: clamp((cx-b[0]*st)/scale, 0, float32(origWidth)),
							Y1: clamp((cy-b[1]*st)/scale, 0, float32(origHeight)),
							X2: clamp((cx+b[2]*st)/scale, 0, float32(origWidth)),
							Y2: clamp((cy+b[3]*st)/scale, 0, float32(origHeight)),
						}

						k := kpsData[anchorIdx*10:]
						kp := func(i int) Point {
							return Point{(cx + k[2*i]*st) / scale, (cy + k[2*i+1]*st) / scale}
						}

						faces = append(faces, Face{
							BoundingBox: box,
							Landmarks: Landmarks{
								LeftEye:    kp(0),
								RightEye:   kp(1),
								Nose:       kp(2),
								LeftMouth:  kp(3),
								RightMouth: kp(4),
							},
							Score: score,
						})
					}
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(x, lo, hi float32) float32 {
	return min(max(x, lo), hi)
}
