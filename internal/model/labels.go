package model

// ClassNames is the classifier's output vocabulary in trained order. The
// model's final layer emits scores positionally, so this order must never
// change without retraining.
var ClassNames = []string{
	"nevus",
	"melanoma",
	"other",
	"squamous cell carcinoma",
	"solar lentigo",
	"basal cell carcinoma",
	"melanoma metastasis",
	"seborrheic keratosis",
	"actinic keratosis",
	"dermatofibroma",
	"scar",
	"vascular lesion",
}

// InputSize is the square pixel resolution the model was trained on.
const InputSize = 224
