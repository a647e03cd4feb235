package neuralnet

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"
)

// State is the lifecycle of a Trainer.
type State int

const (
	Idle State = iota
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result is what a training run produces. Model is a new value; the model
// passed to Train is left untouched.
type Result struct {
	Model    *Model
	Costs    []float64
	Accuracy float64
}

// Trainer runs full-batch gradient descent for a fixed number of epochs.
// A Trainer is not safe for concurrent use; concurrent runs each need their
// own Trainer.
type Trainer struct {
	// Logger receives progress lines; nil keeps training silent.
	Logger    *log.Logger
	Optimizer Optimizer
	Callbacks []Callback

	state State
}

func NewTrainer(logger *log.Logger, callbacks ...Callback) *Trainer {
	return &Trainer{
		Logger:    logger,
		Optimizer: GradientDescent{},
		Callbacks: callbacks,
	}
}

func (t *Trainer) State() State {
	return t.state
}

// Train deep-copies model and trains the copy on x (features×m) and y
// (outputs×m) for exactly epochs iterations. When printCostEvery > 0 the cost
// and training accuracy are logged every printCostEvery epochs, before that
// epoch's update is applied.
func (t *Trainer) Train(model *Model, x, y mat.Matrix, epochs, printCostEvery int) (*Result, error) {
	if epochs < 0 {
		return nil, fmt.Errorf("negative epoch count %d", epochs)
	}
	optimizer := t.Optimizer
	if optimizer == nil {
		optimizer = GradientDescent{}
	}

	work := model.Clone()
	t.state = Running
	for _, cb := range t.Callbacks {
		cb.OnTrainBegin(work)
	}

	result := &Result{Model: work, Costs: make([]float64, 0, epochs)}
	var stepErr error
	err := guard(func() {
		for e := 0; e < epochs; e++ {
			cache := Forward(work, x)
			cache = Backward(work, cache, x, y)

			if printCostEvery > 0 && e%printCostEvery == 0 && t.Logger != nil {
				t.Logger.Printf("Cost after %d epochs: %v (training set accuracy: %v)", e, cache.J, correct(work, x, y))
			}

			if stepErr = optimizer.Apply(work, cache); stepErr != nil {
				return
			}
			result.Costs = append(result.Costs, cache.J)
			for _, cb := range t.Callbacks {
				cb.OnEpochEnd(e, cache.J)
			}
		}
		result.Accuracy = correct(work, x, y)
	})
	if err == nil {
		err = stepErr
	}
	if err != nil {
		t.state = Idle
		for _, cb := range t.Callbacks {
			cb.OnTrainEnd(nil)
		}
		return nil, fmt.Errorf("train: %w", err)
	}

	t.state = Done
	for _, cb := range t.Callbacks {
		cb.OnTrainEnd(result)
	}
	return result, nil
}
