package policy

import (
	"math"
	"testing"

	"github.com/cartridge/expbuffer/internal/space"
)

func TestRandomPolicy_Discrete(t *testing.T) {
	policy, err := NewRandom(space.Discrete(9), 1)
	if err != nil {
		t.Fatalf("Failed to create random policy: %v", err)
	}

	actions, neglogp, err := policy.SelectActions(make([]float64, 3*4), 3)
	if err != nil {
		t.Fatalf("Failed to select actions: %v", err)
	}

	// One action per env
	if len(actions) != 3 {
		t.Errorf("Expected 3 actions, got %d", len(actions))
	}
	for _, a := range actions {
		if !space.Discrete(9).Contains([]float64{a}) {
			t.Errorf("Action %v out of range [0, 8]", a)
		}
	}
	for _, nlp := range neglogp {
		if math.Abs(nlp-math.Log(9)) > 1e-12 {
			t.Errorf("Expected neglogp %v, got %v", math.Log(9), nlp)
		}
	}
}

func TestRandomPolicy_MultiDiscrete(t *testing.T) {
	actionSpace := space.MultiDiscrete(3, 4, 2)
	policy, err := NewRandom(actionSpace, 1)
	if err != nil {
		t.Fatalf("Failed to create random policy: %v", err)
	}

	actions, neglogp, err := policy.SelectActions(make([]float64, 2), 2)
	if err != nil {
		t.Fatalf("Failed to select actions: %v", err)
	}

	// 2 envs * 3 dimensions
	if len(actions) != 6 {
		t.Fatalf("Expected 6 action values, got %d", len(actions))
	}
	for env := 0; env < 2; env++ {
		if !actionSpace.Contains(actions[env*3 : (env+1)*3]) {
			t.Errorf("Env %d action %v outside %v", env, actions[env*3:(env+1)*3], actionSpace)
		}
	}
	if want := math.Log(24); math.Abs(neglogp[0]-want) > 1e-12 {
		t.Errorf("Expected neglogp %v, got %v", want, neglogp[0])
	}
}

func TestRandomPolicy_Continuous(t *testing.T) {
	actionSpace := space.Box(-1, 1, 2)
	policy, err := NewRandom(actionSpace, 1)
	if err != nil {
		t.Fatalf("Failed to create random policy: %v", err)
	}

	actions, neglogp, err := policy.SelectActions(make([]float64, 4), 4)
	if err != nil {
		t.Fatalf("Failed to select actions: %v", err)
	}

	if len(actions) != 8 {
		t.Fatalf("Expected 8 action values, got %d", len(actions))
	}
	for env := 0; env < 4; env++ {
		if !actionSpace.Contains(actions[env*2 : (env+1)*2]) {
			t.Errorf("Env %d action %v outside %v", env, actions[env*2:(env+1)*2], actionSpace)
		}
	}
	// density of U([-1,1]^2) is 1/4
	if want := math.Log(4); math.Abs(neglogp[3]-want) > 1e-12 {
		t.Errorf("Expected neglogp %v, got %v", want, neglogp[3])
	}
}

func TestRandomPolicy_InvalidActionSpace(t *testing.T) {
	if _, err := NewRandom(space.Discrete(0), 1); err == nil {
		t.Error("Expected error for empty discrete space")
	}
	if _, err := NewRandom(space.Box(math.Inf(-1), math.Inf(1), 2), 1); err == nil {
		t.Error("Expected error for unbounded box")
	}
}

func TestRandomPolicy_InvalidInput(t *testing.T) {
	policy, err := NewRandom(space.Discrete(2), 1)
	if err != nil {
		t.Fatalf("Failed to create random policy: %v", err)
	}
	if _, _, err := policy.SelectActions(nil, 0); err == nil {
		t.Error("Expected error for zero envs")
	}
	if _, _, err := policy.SelectActions(make([]float64, 5), 2); err == nil {
		t.Error("Expected error for ragged observations")
	}
}

func TestRandomPolicy_MultipleSelections(t *testing.T) {
	// Test that multiple selections produce different results (probabilistically)
	policy, err := NewRandom(space.Discrete(9), 5)
	if err != nil {
		t.Fatalf("Failed to create random policy: %v", err)
	}

	actionSet := make(map[float64]bool)
	for i := 0; i < 100; i++ {
		actions, _, err := policy.SelectActions(make([]float64, 1), 1)
		if err != nil {
			t.Fatalf("Failed to select action: %v", err)
		}
		actionSet[actions[0]] = true
	}

	if len(actionSet) < 2 {
		t.Errorf("Expected multiple different actions, got only %d unique actions", len(actionSet))
	}
}
