package harn

import (
	"fmt"
	"math/big"
)

// Value is a labelled number shown in a walkthrough step
type Value struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Step is one stage of the signing walkthrough
type Step struct {
	Title  string  `json:"title"`
	Detail string  `json:"detail"`
	Values []Value `json:"values"`
}

// Walkthrough is a computed, step-by-step account of a signing session
type Walkthrough struct {
	Session         *Session
	IdentityProduct *big.Int
	Equation        Equation
	Steps           []Step
}

// Valid reports whether the verification equation holds
func (w *Walkthrough) Valid() bool {
	return w.Equation.Holds()
}

// Walkthrough signs message with the named signers and records every
// intermediate value
func (c *Coordinator) Walkthrough(message []byte, names []string) (*Walkthrough, error) {
	session, err := c.Sign(message, names)
	if err != nil {
		return nil, err
	}

	idProduct, err := IdentityProduct(c.params, session.Identities)
	if err != nil {
		return nil, err
	}
	eq := equation(c.params, session.Signature.S, idProduct, session.Aggregate, session.Challenge)

	steps := make([]Step, 0, 6)

	setup := Step{
		Title:  "PKG parameters",
		Detail: "Public modulus and exponent of the private key generator",
		Values: []Value{
			{Label: "n", Value: c.params.N.String()},
			{Label: "e", Value: c.params.E.String()},
		},
	}
	steps = append(steps, setup)

	commit := Step{
		Title:  "Round 1: commitments",
		Detail: "Each signer publishes t_i = r_i^e mod n",
	}
	for _, cm := range session.Commitments {
		commit.Values = append(commit.Values, Value{Label: "t_" + cm.Signer, Value: cm.T.String()})
	}
	steps = append(steps, commit)

	steps = append(steps, Step{
		Title:  "Aggregate commitment",
		Detail: "t = Π t_i mod n",
		Values: []Value{{Label: "t", Value: session.Aggregate.String()}},
	})

	steps = append(steps, Step{
		Title:  "Challenge",
		Detail: fmt.Sprintf("h = SHA-256(t || \"|\" || %q) mod n", session.Message),
		Values: []Value{{Label: "h", Value: session.Challenge.String()}},
	})

	respond := Step{
		Title:  "Round 2: partial signatures",
		Detail: "Each signer publishes s_i = g_i · r_i^h mod n",
	}
	for _, p := range session.Partials {
		respond.Values = append(respond.Values, Value{Label: "s_" + p.Signer, Value: p.S.String()})
	}
	steps = append(steps, respond)

	steps = append(steps, Step{
		Title:  "Multi-signature and verification",
		Detail: "s = Π s_i mod n; check s^e ≡ (Π ID_i) · t^h (mod n)",
		Values: []Value{
			{Label: "s", Value: session.Signature.S.String()},
			{Label: "Π ID_i", Value: idProduct.String()},
			{Label: "s^e mod n", Value: eq.Left.String()},
			{Label: "(Π ID_i) · t^h mod n", Value: eq.Right.String()},
			{Label: "valid", Value: fmt.Sprintf("%t", eq.Holds())},
		},
	})

	return &Walkthrough{
		Session:         session,
		IdentityProduct: idProduct,
		Equation:        eq,
		Steps:           steps,
	}, nil
}
