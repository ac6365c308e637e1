package distribution

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
)

// Kernel selects the smoothing kernel of a KDE.
type Kernel string

const (
	Gaussian     Kernel = "gaussian"
	Epanechnikov Kernel = "epanechnikov"
	Uniform      Kernel = "uniform"
)

// ParseKernel maps a config string to a Kernel.
func ParseKernel(s string) (Kernel, error) {
	switch k := Kernel(strings.ToLower(s)); k {
	case Gaussian, Epanechnikov, Uniform:
		return k, nil
	case "":
		return Gaussian, nil
	default:
		return "", fmt.Errorf("unknown kernel %q", s)
	}
}

// KDE is a kernel density estimate over the observed values.
//
// A zero bandwidth degenerates to the empirical distribution of Values.
type KDE struct {
	Kernel    Kernel    `json:"kernel"`
	Bandwidth float64   `json:"bandwidth"`
	Values    []float64 `json:"values"`
}

// KDEFitter fits a KDE per bucket. A non-positive Bandwidth selects
// Silverman's rule of thumb.
type KDEFitter struct {
	Kernel    Kernel
	Bandwidth float64
}

// Fit implements Fitter.
func (f KDEFitter) Fit(values []float64) (Distribution, error) {
	if len(values) == 0 {
		return nil, ErrEmptyBucket
	}
	kernel := f.Kernel
	if kernel == "" {
		kernel = Gaussian
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	h := f.Bandwidth
	if h <= 0 {
		h = SilvermanBandwidth(sorted)
	}

	k := &KDE{Kernel: kernel, Bandwidth: h, Values: sorted}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// SilvermanBandwidth returns 0.9 * min(sd, IQR/1.34) * n^(-1/5). Fewer than
// two values or zero spread give 0.
func SilvermanBandwidth(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	data := stats.Float64Data(values)

	sd, err := stats.StandardDeviationSample(data)
	if err != nil || math.IsNaN(sd) {
		return 0
	}
	spread := sd
	if n >= 4 {
		if iqr, err := stats.InterQuartileRange(data); err == nil && iqr > 0 && iqr/1.34 < spread {
			spread = iqr / 1.34
		}
	}
	if spread <= 0 {
		return 0
	}
	return 0.9 * spread * math.Pow(float64(n), -0.2)
}

// Validate checks the estimate is usable.
func (k *KDE) Validate() error {
	if len(k.Values) == 0 {
		return ErrEmptyBucket
	}
	if _, err := ParseKernel(string(k.Kernel)); err != nil {
		return err
	}
	if math.IsNaN(k.Bandwidth) || math.IsInf(k.Bandwidth, 0) || k.Bandwidth < 0 {
		return errors.New("kde bandwidth must be finite and non-negative")
	}
	return nil
}

// Sample draws n values: a random observation plus scaled kernel noise.
func (k *KDE) Sample(n int, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := k.Values[rng.Intn(len(k.Values))]
		if k.Bandwidth > 0 {
			x += k.Bandwidth * k.kernelNoise(rng)
		}
		out[i] = x
	}
	return out
}

func (k *KDE) kernelNoise(rng *rand.Rand) float64 {
	switch k.Kernel {
	case Epanechnikov:
		// median-of-three construction for the Epanechnikov kernel
		u1 := rng.Float64()*2 - 1
		u2 := rng.Float64()*2 - 1
		u3 := rng.Float64()*2 - 1
		if math.Abs(u3) >= math.Abs(u2) && math.Abs(u3) >= math.Abs(u1) {
			return u2
		}
		return u3
	case Uniform:
		return rng.Float64()*2 - 1
	default:
		return rng.NormFloat64()
	}
}

// Density evaluates the estimate at x. With zero bandwidth it returns the
// empirical probability mass at x.
func (k *KDE) Density(x float64) float64 {
	n := float64(len(k.Values))
	if k.Bandwidth == 0 {
		hits := 0
		for _, v := range k.Values {
			if v == x {
				hits++
			}
		}
		return float64(hits) / n
	}
	sum := 0.0
	for _, v := range k.Values {
		sum += k.kernelDensity((x - v) / k.Bandwidth)
	}
	return sum / (n * k.Bandwidth)
}

func (k *KDE) kernelDensity(u float64) float64 {
	switch k.Kernel {
	case Epanechnikov:
		if math.Abs(u) > 1 {
			return 0
		}
		return 0.75 * (1 - u*u)
	case Uniform:
		if math.Abs(u) > 1 {
			return 0
		}
		return 0.5
	default:
		return math.Exp(-0.5*u*u) / math.Sqrt(2*math.Pi)
	}
}

// Equal reports whether both estimates have the same kernel, bandwidth and values.
func (k *KDE) Equal(o *KDE) bool {
	if k == nil || o == nil {
		return k == o
	}
	if k.Kernel != o.Kernel || k.Bandwidth != o.Bandwidth || len(k.Values) != len(o.Values) {
		return false
	}
	for i := range k.Values {
		if k.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}
