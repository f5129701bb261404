package matrix

// Magnitude returns the magnitude of vector j in row i.
func (m *Matrix) Magnitude(i, j int) float64 {
	return m.dense.At(i, j)
}

// Angle returns the angle of vector j in row i.
func (m *Matrix) Angle(i, j int) float64 {
	return m.dense.At(i, j+m.Half())
}

// SetPolar stores magnitude and angle of vector j in row i.
func (m *Matrix) SetPolar(i, j int, magnitude, angle float64) {
	half := m.Half()
	row := m.dense.RawRowView(i)
	row[j] = magnitude
	row[j+half] = angle
}

// AccumulatePolar adds dm and da to the magnitude and angle of vector j in row i.
func (m *Matrix) AccumulatePolar(i, j int, dm, da float64) {
	half := m.Half()
	row := m.dense.RawRowView(i)
	row[j] += dm
	row[j+half] += da
}

// NewPolar creates a rows×(2*vectors) matrix from separate magnitude and angle rows.
func NewPolar(magnitudes, angles [][]float64) (*Matrix, error) {
	mags, err := FromRows(magnitudes)
	if err != nil {
		return nil, err
	}
	angs, err := FromRows(angles)
	if err != nil {
		return nil, err
	}
	if err := SameShape(mags, angs); err != nil {
		return nil, err
	}
	rows, half := mags.Dims()
	out := New(rows, 2*half)
	for i := 0; i < rows; i++ {
		for j := 0; j < half; j++ {
			out.SetPolar(i, j, mags.At(i, j), angs.At(i, j))
		}
	}
	return out, nil
}
