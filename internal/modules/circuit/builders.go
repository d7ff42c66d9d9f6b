package circuit

// Fixed single-qubit gates.
func X(q int) Gate { return Gate{Kind: KindX, Qubits: []int{q}} }
func Y(q int) Gate { return Gate{Kind: KindY, Qubits: []int{q}} }
func Z(q int) Gate { return Gate{Kind: KindZ, Qubits: []int{q}} }
func H(q int) Gate { return Gate{Kind: KindH, Qubits: []int{q}} }
func S(q int) Gate { return Gate{Kind: KindS, Qubits: []int{q}} }
func Sdg(q int) Gate { return Gate{Kind: KindSdg, Qubits: []int{q}} }
func T(q int) Gate { return Gate{Kind: KindT, Qubits: []int{q}} }
func SX(q int) Gate { return Gate{Kind: KindSX, Qubits: []int{q}} }

// HS applies H then S; SdgH applies Sdg then H. They map between the Y and
// Z bases.
func HS(q int) Gate { return Gate{Kind: KindHS, Qubits: []int{q}} }
func SdgH(q int) Gate { return Gate{Kind: KindSdgH, Qubits: []int{q}} }

// Rotations.
func RX(q int, a Angle) Gate { return Gate{Kind: KindRX, Qubits: []int{q}, Angles: []Angle{a}} }
func RY(q int, a Angle) Gate { return Gate{Kind: KindRY, Qubits: []int{q}, Angles: []Angle{a}} }
func RZ(q int, a Angle) Gate { return Gate{Kind: KindRZ, Qubits: []int{q}, Angles: []Angle{a}} }
func P(q int, a Angle) Gate { return Gate{Kind: KindP, Qubits: []int{q}, Angles: []Angle{a}} }

// U is the generic single-qubit rotation U(θ, φ, λ).
func U(q int, theta, phi, lambda Angle) Gate {
	return Gate{Kind: KindU, Qubits: []int{q}, Angles: []Angle{theta, phi, lambda}}
}

// Two- and three-qubit gates. Controls come first.
func CX(control, target int) Gate { return Gate{Kind: KindCX, Qubits: []int{control, target}} }
func CZ(control, target int) Gate { return Gate{Kind: KindCZ, Qubits: []int{control, target}} }
func Swap(a, b int) Gate { return Gate{Kind: KindSwap, Qubits: []int{a, b}} }
func RZZ(a, b int, angle Angle) Gate {
	return Gate{Kind: KindRZZ, Qubits: []int{a, b}, Angles: []Angle{angle}}
}
func CCX(c1, c2, target int) Gate { return Gate{Kind: KindCCX, Qubits: []int{c1, c2, target}} }

// PauliRot is exp(-i θ/2 P) where paulis[j] acts on qubits[j].
func PauliRot(qubits []int, paulis string, a Angle) Gate {
	return Gate{Kind: KindPauliRot, Qubits: qubits, Paulis: paulis, Angles: []Angle{a}}
}

// Unitary wraps an explicit matrix; index bit j corresponds to qubits[j].
func Unitary(qubits []int, m []complex128) Gate {
	return Gate{Kind: KindUnitary, Qubits: qubits, Unitary: m}
}
