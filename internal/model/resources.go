package model

import "fmt"

// Resources represents an amount of cpu, gpu and memory units
type Resources struct {
	CPU    int `json:"cpu"`
	GPU    int `json:"gpu"`
	Memory int `json:"memory"`
}

// NewResources creates a resource amount, rejecting negative values
func NewResources(cpu, gpu, memory int) (Resources, error) {
	r := Resources{CPU: cpu, GPU: gpu, Memory: memory}
	if err := r.Validate(); err != nil {
		return Resources{}, err
	}
	return r, nil
}

// Validate returns an InvalidDemand error if any dimension is negative
func (r Resources) Validate() error {
	if r.CPU < 0 || r.GPU < 0 || r.Memory < 0 {
		return NewError(KindInvalidDemand, CodeInvalidDemand,
			fmt.Sprintf("resource values must not be negative: cpu=%d gpu=%d memory=%d", r.CPU, r.GPU, r.Memory))
	}
	return nil
}

// Add returns the sum of both amounts
func (r Resources) Add(other Resources) Resources {
	return Resources{
		CPU:    r.CPU + other.CPU,
		GPU:    r.GPU + other.GPU,
		Memory: r.Memory + other.Memory,
	}
}

// Sub returns r minus other. The result may be negative; callers check with IsNegative.
func (r Resources) Sub(other Resources) Resources {
	return Resources{
		CPU:    r.CPU - other.CPU,
		GPU:    r.GPU - other.GPU,
		Memory: r.Memory - other.Memory,
	}
}

// Fits returns true if r is less than or equal to limit on every dimension
func (r Resources) Fits(limit Resources) bool {
	return r.CPU <= limit.CPU && r.GPU <= limit.GPU && r.Memory <= limit.Memory
}

// FitsWithin returns true if r can be added to used without exceeding limit
// on any dimension. The check compares against the headroom left so that
// no sum is ever formed.
func (r Resources) FitsWithin(used, limit Resources) bool {
	return fitsWithin(r.CPU, used.CPU, limit.CPU) &&
		fitsWithin(r.GPU, used.GPU, limit.GPU) &&
		fitsWithin(r.Memory, used.Memory, limit.Memory)
}

func fitsWithin(demand, used, limit int) bool {
	if used < 0 || used > limit {
		return false
	}
	return demand <= limit-used
}

// AddChecked returns the sum of both amounts, or false if any dimension overflows
func (r Resources) AddChecked(other Resources) (Resources, bool) {
	sum := r.Add(other)
	if overflows(r.CPU, other.CPU, sum.CPU) || overflows(r.GPU, other.GPU, sum.GPU) || overflows(r.Memory, other.Memory, sum.Memory) {
		return Resources{}, false
	}
	return sum, true
}

func overflows(a, b, sum int) bool {
	return (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0)
}

// IsNegative returns true if any dimension is below zero
func (r Resources) IsNegative() bool {
	return r.CPU < 0 || r.GPU < 0 || r.Memory < 0
}

// IsZero returns true if every dimension is zero
func (r Resources) IsZero() bool {
	return r.CPU == 0 && r.GPU == 0 && r.Memory == 0
}

func (r Resources) String() string {
	return fmt.Sprintf("{cpu:%d gpu:%d memory:%d}", r.CPU, r.GPU, r.Memory)
}
