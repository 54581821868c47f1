package http

import (
	"labeler_server/core/port/in"
	"labeler_server/pkg/apperr"
	"labeler_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// livenessText is the /predict payload answered with a liveness message.
const livenessText = "test"

const apiMessage = "Gmail Label Classifier API is active"

const (
	examplesPageSize    = 50
	maxExamplesPageSize = 500
)

// ClassifierHandler serves the training and prediction routes.
type ClassifierHandler struct {
	svc          in.ClassifierService
	testFraction float64
	folds        int
}

// NewClassifierHandler creates a handler. testFraction and folds are the /evaluate defaults.
func NewClassifierHandler(svc in.ClassifierService, testFraction float64, folds int) *ClassifierHandler {
	return &ClassifierHandler{svc: svc, testFraction: testFraction, folds: folds}
}

func (h *ClassifierHandler) Register(router fiber.Router) {
	router.Get("/", h.Root)
	router.Post("/predict", h.Predict)
	router.Post("/train", h.Train)
	router.Post("/reset", h.Reset)
	router.Get("/evaluate", h.Evaluate)
	router.Get("/status", h.Status)
	router.Put("/settings", h.UpdateSettings)
	router.Get("/examples", h.Examples)
}

// Root reports that the API is up.
// GET /
func (h *ClassifierHandler) Root(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{Status: "Server is running", Message: apiMessage})
}

type predictRequest struct {
	Text *string `json:"text"`
}

// Predict classifies a text.
// POST /predict
func (h *ClassifierHandler) Predict(c *fiber.Ctx) error {
	var req predictRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Text == nil {
		return apperr.MissingField("text")
	}

	strict := *req.Text == livenessText
	pred, err := h.svc.Classify(c.UserContext(), *req.Text, strict)
	if err != nil {
		return err
	}
	if strict {
		return c.JSON(StatusResponse{Status: pred.Message})
	}
	return c.JSON(pred)
}

type trainRequest struct {
	Text  *string `json:"text"`
	Label *string `json:"label"`
}

// Train records a labeled example.
// POST /train
func (h *ClassifierHandler) Train(c *fiber.Ctx) error {
	var req trainRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Text == nil {
		return apperr.MissingField("text")
	}
	if req.Label == nil {
		return apperr.MissingField("label")
	}

	result, err := h.svc.SubmitExample(c.UserContext(), *req.Text, *req.Label)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Reset discards all examples and models.
// POST /reset
func (h *ClassifierHandler) Reset(c *fiber.Ctx) error {
	if err := h.svc.Reset(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(StatusResponse{Status: "success"})
}

// Evaluate reports held-out and cross-validated accuracy.
// GET /evaluate?test_fraction=0.2&folds=5
func (h *ClassifierHandler) Evaluate(c *fiber.Ctx) error {
	fraction, err := queryFloat(c, "test_fraction", h.testFraction)
	if err != nil {
		return err
	}
	folds, err := queryInt(c, "folds", h.folds)
	if err != nil {
		return err
	}

	report, err := h.svc.EvaluateAccuracy(c.UserContext(), fraction, folds)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// Status reports training progress and settings.
// GET /status
func (h *ClassifierHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.svc.Status(c.UserContext()))
}

// UpdateSettings changes the acceptance threshold or minimum text length.
// PUT /settings
func (h *ClassifierHandler) UpdateSettings(c *fiber.Ctx) error {
	var update in.SettingsUpdate
	if err := bindJSON(c, &update); err != nil {
		return err
	}
	settings, err := h.svc.UpdateSettings(c.UserContext(), update)
	if err != nil {
		return err
	}
	return c.JSON(settings)
}

// Examples pages through the recorded corpus.
// GET /examples?limit=50&offset=0
func (h *ClassifierHandler) Examples(c *fiber.Ctx) error {
	p := response.GetPagination(c, examplesPageSize, maxExamplesPageSize)

	page, err := h.svc.Examples(c.UserContext(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, page.Examples, response.NewMeta(page.Total, page.Limit, page.Offset, len(page.Examples)))
}
