package log

// Canonical structured logging keys.
const (
	OperationKey  = "operation"
	PhaseKey      = "phase"
	ComponentKey  = "component"
	ModelNameKey  = "model"
	StageKey      = "stage"
	FoldKey       = "fold"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	PredsKey      = "predictions"
	DurationMsKey = "duration_ms"
)

// Operation values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
)

// Phase values.
const (
	PhaseTraining   = "training"
	PhaseInference  = "inference"
	PhaseEvaluation = "evaluation"
)
