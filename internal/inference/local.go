package inference

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/foodlens/foodlens-go/internal/conf"
	tflite "github.com/tphakala/go-tflite"
)

// localBackend runs detection with a TensorFlow Lite model loaded from
// local weights. The interpreter does not support concurrent invocation so
// access to it is serialized with a mutex.
type localBackend struct {
	interpreter *tflite.Interpreter
	model       *tflite.Model
	labels      []string
	inputWidth  int
	inputHeight int
	mu          sync.Mutex
}

// Output tensor row layout: x1, y1, x2, y2 in normalized coordinates,
// confidence score, class index.
const outputRowSize = 6

// newLocalBackend loads the model weights and class labels from disk and
// allocates the interpreter. Any failure is returned to the router which
// falls through to the next backend.
func newLocalBackend(settings *conf.Settings) (*localBackend, error) {
	modelData, err := os.ReadFile(settings.Detector.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("reading model weights: %w", err)
	}

	labels, err := loadLabels(settings.Detector.LabelPath)
	if err != nil {
		return nil, fmt.Errorf("loading labels: %w", err)
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model from %s", settings.Detector.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(runtime.NumCPU())

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	inputTensor := interpreter.GetInputTensor(0)
	if inputTensor == nil || inputTensor.NumDims() != 4 {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("unexpected input tensor shape")
	}

	return &localBackend{
		interpreter: interpreter,
		model:       model,
		labels:      labels,
		inputHeight: inputTensor.Dim(1),
		inputWidth:  inputTensor.Dim(2),
	}, nil
}

func (b *localBackend) Name() string {
	return "local"
}

// Predict resizes the image to the model input, invokes the interpreter and
// decodes the output rows into detections scaled back to source pixels.
func (b *localBackend) Predict(ctx context.Context, img image.Image, opts Options) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := imageToTensor(img, b.inputWidth, b.inputHeight)

	b.mu.Lock()
	copy(b.interpreter.GetInputTensor(0).Float32s(), input)

	if status := b.interpreter.Invoke(); status != tflite.OK {
		b.mu.Unlock()
		return nil, fmt.Errorf("interpreter invoke failed")
	}

	outputTensor := b.interpreter.GetOutputTensor(0)
	rows := make([]float32, len(outputTensor.Float32s()))
	copy(rows, outputTensor.Float32s())
	b.mu.Unlock()

	return b.decodeRows(rows, img.Bounds(), opts)
}

func (b *localBackend) decodeRows(rows []float32, bounds image.Rectangle, opts Options) ([]Detection, error) {
	width := float64(bounds.Dx())
	height := float64(bounds.Dy())

	detections := make([]Detection, 0)
	for offset := 0; offset+outputRowSize <= len(rows); offset += outputRowSize {
		score := float64(rows[offset+4])
		if score < opts.Confidence {
			continue
		}

		classID := int(rows[offset+5])
		if classID < 0 || classID >= len(b.labels) {
			continue
		}

		detections = append(detections, Detection{
			Label:      b.labels[classID],
			Confidence: score,
			Box: [4]float64{
				float64(rows[offset+0]) * width,
				float64(rows[offset+1]) * height,
				float64(rows[offset+2]) * width,
				float64(rows[offset+3]) * height,
			},
		})
	}

	return capDetections(detections, opts.MaxDetections), nil
}

// Close releases the interpreter and model resources.
func (b *localBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.interpreter != nil {
		b.interpreter.Delete()
		b.interpreter = nil
	}
	if b.model != nil {
		b.model.Delete()
		b.model = nil
	}
}

// loadLabels reads one class label per line, matching the label files the
// training pipeline exports next to the weights.
func loadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("label file %s is empty", path)
	}
	return labels, nil
}

// imageToTensor resizes the image to the model input size with nearest
// neighbor sampling and normalizes RGB values to [0,1].
func imageToTensor(img image.Image, width, height int) []float32 {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	tensor := make([]float32, width*height*3)
	for y := 0; y < height; y++ {
		srcY := bounds.Min.Y + y*srcH/height
		for x := 0; x < width; x++ {
			srcX := bounds.Min.X + x*srcW/width
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			idx := (y*width + x) * 3
			tensor[idx+0] = float32(r>>8) / 255.0
			tensor[idx+1] = float32(g>>8) / 255.0
			tensor[idx+2] = float32(b>>8) / 255.0
		}
	}
	return tensor
}
