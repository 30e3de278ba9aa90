package face

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// DescriptorLen is the number of components in a face embedding.
const DescriptorLen = 128

// DefaultThreshold is the largest distance still considered the same face.
const DefaultThreshold = 0.6

var (
	// ErrInvalidDescriptor is returned when an encoded descriptor has the wrong shape.
	ErrInvalidDescriptor = errors.New("invalid face descriptor")
	// ErrNoDescriptors is returned when matching against an empty set.
	ErrNoDescriptors = errors.New("no enrolled face descriptors")
)

// Descriptor is a 128-dimensional face embedding.
type Descriptor [DescriptorLen]float32

// Encode renders d as standard base64 over its 512 little-endian float32 bytes.
func (d Descriptor) Encode() string {
	buf := make([]byte, DescriptorLen*4)
	for i, v := range d {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Decode parses the form produced by Encode. Anything else is rejected.
func Decode(s string) (Descriptor, error) {
	var d Descriptor
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if len(buf) != DescriptorLen*4 {
		return d, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidDescriptor, DescriptorLen*4, len(buf))
	}
	for i := range d {
		v := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return Descriptor{}, fmt.Errorf("%w: component %d is not finite", ErrInvalidDescriptor, i)
		}
		d[i] = v
	}
	return d, nil
}

// MarshalText implements encoding.TextMarshaler so descriptors travel as
// their canonical string in JSON.
func (d Descriptor) MarshalText() ([]byte, error) {
	return []byte(d.Encode()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Descriptor) UnmarshalText(text []byte) error {
	decoded, err := Decode(string(text))
	if err != nil {
		return err
	}
	*d = decoded
	return nil
}

// Distance is the Euclidean distance between two descriptors.
func Distance(a, b Descriptor) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Match is the closest stored descriptor for a candidate.
type Match struct {
	Index    int
	Distance float64
	OK       bool
}

// Matcher compares candidates against enrolled descriptors.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a matcher, falling back to DefaultThreshold when
// threshold is not positive.
func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// FindBestMatch returns the stored descriptor nearest to candidate. OK is
// set when that distance is strictly below the threshold.
func (m Matcher) FindBestMatch(candidate Descriptor, stored ...Descriptor) (Match, error) {
	if len(stored) == 0 {
		return Match{}, ErrNoDescriptors
	}
	threshold := m.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	best := Match{Index: -1, Distance: math.Inf(1)}
	for i, d := range stored {
		if dist := Distance(candidate, d); dist < best.Distance {
			best = Match{Index: i, Distance: dist}
		}
	}
	best.OK = best.Distance < threshold
	return best, nil
}
