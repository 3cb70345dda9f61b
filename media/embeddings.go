package media

import (
	"image"
	"log"
	"math"
	"os"

	"gocv.io/x/gocv"
)

// EmbeddingModel produces fixed-length face embeddings for recognition.
// Like the detector it is an opaque external model.
type EmbeddingModel struct {
	Net       gocv.Net
	Enabled   bool
	ModelName string

	// Configuration parameters
	InputSizeW  int
	InputSizeH  int
	ScaleFactor float64
	MeanVal     gocv.Scalar
	StdVal      gocv.Scalar
}

// NewEmbeddingModel loads a face embedding model (ArcFace, FaceNet, etc.)
func NewEmbeddingModel(modelPath string, modelName string) *EmbeddingModel {
	if modelPath == "" {
		log.Println("embeddings: model path is empty, disabling embedding extraction")
		return &EmbeddingModel{Enabled: false}
	}

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		log.Printf("embeddings: ERROR - Model file does not exist: %s", modelPath)
		return &EmbeddingModel{Enabled: false}
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		log.Printf("embeddings: ERROR - ReadNet returned an empty network for %s. Check file path and integrity.", modelName)
		return &EmbeddingModel{Enabled: false}
	}
	log.Printf("embeddings: successfully loaded %s model", modelName)

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)

	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Printf("embeddings: Set backend/target to CUDA for %s", modelName)
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Printf("embeddings: Set backend/target to CPU (Default) for %s", modelName)
	}

	var inputSizeW, inputSizeH int
	switch modelName {
	case "facenet":
		inputSizeW, inputSizeH = 160, 160
	default: // arcface and friends
		inputSizeW, inputSizeH = 112, 112
	}

	return &EmbeddingModel{
		Net:         net,
		Enabled:     true,
		ModelName:   modelName,
		InputSizeW:  inputSizeW,
		InputSizeH:  inputSizeH,
		ScaleFactor: 1.0 / 255.0,
		MeanVal:     gocv.NewScalar(0, 0, 0, 0),
		StdVal:      gocv.NewScalar(128.0, 128.0, 128.0, 0),
	}
}

func (m *EmbeddingModel) Close() {
	if m != nil && m.Enabled {
		m.Net.Close()
		log.Printf("embeddings: closed %s network", m.ModelName)
		m.Enabled = false
	}
}

// ExtractEmbedding extracts an L2-normalized embedding from a face crop.
// Returns nil when the model is disabled or the crop is empty.
func (m *EmbeddingModel) ExtractEmbedding(faceRegion gocv.Mat) []float32 {
	if m == nil || !m.Enabled || faceRegion.Empty() {
		return nil
	}

	processed := m.preprocessFace(faceRegion)
	if processed.Empty() {
		return nil
	}
	defer processed.Close()

	blob := gocv.BlobFromImage(processed, m.ScaleFactor, image.Pt(m.InputSizeW, m.InputSizeH), m.MeanVal, false, false)
	defer blob.Close()

	m.Net.SetInput(blob, "")
	output := m.Net.Forward("")
	defer output.Close()

	embedding := flattenOutput(output)
	return NormalizeEmbedding(embedding)
}

// preprocessFace converts the crop to RGB and resizes to the model's input
func (m *EmbeddingModel) preprocessFace(faceRegion gocv.Mat) gocv.Mat {
	var processed gocv.Mat
	if faceRegion.Channels() == 3 {
		processed = gocv.NewMat()
		gocv.CvtColor(faceRegion, &processed, gocv.ColorBGRToRGB)
	} else {
		processed = faceRegion.Clone()
	}

	aligned := gocv.NewMat()
	gocv.Resize(processed, &aligned, image.Pt(m.InputSizeW, m.InputSizeH), 0, 0, gocv.InterpolationLinear)
	processed.Close()

	converted := gocv.NewMat()
	aligned.ConvertTo(&converted, gocv.MatTypeCV32F)
	aligned.Close()
	return converted
}

func flattenOutput(output gocv.Mat) []float32 {
	if len(output.Size()) == 0 {
		return nil
	}

	flattened := output.Reshape(1, 1)
	defer flattened.Close()

	embedding := make([]float32, flattened.Cols())
	for i := 0; i < flattened.Cols(); i++ {
		embedding[i] = flattened.GetFloatAt(0, i)
	}
	return embedding
}

// NormalizeEmbedding scales the vector to unit length (L2 normalization)
func NormalizeEmbedding(embedding []float32) []float32 {
	if len(embedding) == 0 {
		return embedding
	}

	var norm float32
	for _, val := range embedding {
		norm += val * val
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm == 0 {
		return embedding
	}

	normalized := make([]float32, len(embedding))
	for i, val := range embedding {
		normalized[i] = val / norm
	}
	return normalized
}

// CosineSimilarity computes the similarity of two embeddings. Since
// embeddings are normalized, the dot product equals cosine similarity.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
	}
	return dot
}
