package renderer

// Sampler thins progress logging to one line per bucket crossed.
type Sampler struct {
	bucket     int
	lastBucket int
}

func NewSampler(bucket int) *Sampler {
	if bucket <= 0 {
		bucket = 10
	}
	return &Sampler{bucket: bucket, lastBucket: -1}
}

// ShouldLog reports whether percent entered a new bucket.
func (s *Sampler) ShouldLog(percent int) bool {
	if s == nil {
		return true
	}
	b := percent / s.bucket
	if b > s.lastBucket {
		s.lastBucket = b
		return true
	}
	return false
}
