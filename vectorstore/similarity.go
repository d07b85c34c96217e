package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"

	"github/itish2003/rentalqa/models"
)

// cosineSimilarity returns 0 when either vector has zero norm or the
// dimensions differ.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

type scored struct {
	id  string
	doc models.RetrievedDocument
}

// topK orders hits by descending score, breaking ties by record ID, and
// keeps the first k.
func topK(hits []scored, k int) []models.RetrievedDocument {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].doc.Score != hits[j].doc.Score {
			return hits[i].doc.Score > hits[j].doc.Score
		}
		return hits[i].id < hits[j].id
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	out := make([]models.RetrievedDocument, len(hits))
	for i, h := range hits {
		out[i] = h.doc
	}
	return out
}

// encodeFloat32Slice converts []float32 to []byte.
func encodeFloat32Slice(f []float32) []byte {
	buf := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeFloat32Slice converts []byte to []float32.
func decodeFloat32Slice(b []byte) []float32 {
	f := make([]float32, len(b)/4)
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return f
}

// decodeMetadata unmarshals stored metadata, turning whole JSON numbers back
// into ints so chunk ordinals survive a round trip.
func decodeMetadata(raw []byte) models.Metadata {
	md := models.Metadata{}
	if len(raw) == 0 {
		return md
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return md
	}
	for k, v := range m {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			md[k] = int(f)
			continue
		}
		md[k] = v
	}
	return md
}
