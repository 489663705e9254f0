// Package fixture generates synthetic waveforms and mock results for tests.
// Nothing outside _test.go files should import it.
package fixture

import (
	"math"
	"math/rand"

	"goldref/internal/result"
)

// Times returns n sample times spaced step seconds apart, starting at zero.
func Times(n int, step float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) * step
	}
	return t
}

// Sine samples amplitude*sin(2*pi*freq*t + phase) + offset.
func Sine(times []float64, freq, amplitude, phase, offset float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = amplitude*math.Sin(2*math.Pi*freq*t+phase) + offset
	}
	return out
}

// PWM samples a rectangular wave that is high for duty of each period.
func PWM(times []float64, freq, amplitude, duty, offset float64) []float64 {
	period := 1 / freq
	out := make([]float64, len(times))
	for i, t := range times {
		if math.Mod(t, period)/period < duty {
			out[i] = amplitude + offset
		} else {
			out[i] = offset
		}
	}
	return out
}

// Exponential samples amplitude*(1-exp(-t/tau)) + offset.
func Exponential(times []float64, tau, amplitude, offset float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = amplitude*(1-math.Exp(-t/tau)) + offset
	}
	return out
}

// Triangle samples a symmetric triangle wave.
func Triangle(times []float64, freq, amplitude, offset float64) []float64 {
	period := 1 / freq
	out := make([]float64, len(times))
	for i, t := range times {
		phase := math.Mod(t, period) / period
		if phase < 0.5 {
			out[i] = 2*amplitude*phase + offset
		} else {
			out[i] = 2*amplitude*(1-phase) + offset
		}
	}
	return out
}

// NoisySine is Sine plus uniform noise drawn from a seeded source, so the
// same seed always yields the same samples.
func NoisySine(times []float64, freq, amplitude, noise float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := Sine(times, freq, amplitude, 0, 0)
	for i := range out {
		out[i] += (rng.Float64() - 0.5) * noise * amplitude
	}
	return out
}

// MockResult builds a sealed result with a voltage and a current scope signal
// sampled at 100 points, 1 ms of simulated time at a 10 ns timestep.
func MockResult(caseID string) *result.Result {
	const dt = 1e-8
	times := Times(100, dt*1000)
	b := result.NewBuilder(caseID, 0.001, dt)
	_ = b.Add("Scope1_voltage", times, Sine(times, 1000, 1, 0, 0))
	_ = b.Add("Scope1_current", times, Sine(times, 1000, 1, math.Pi/2, 0))
	return b.Seal()
}
