package handlers

import (
	"net/http"

	"github.com/agentpay/backoffice/internal/models"
	"github.com/agentpay/backoffice/internal/services"
)

type UserHandler struct {
	service   *services.UserService
	validator *services.ValidationHelper
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateUserRequest is the user creation payload.
// @Description User creation request
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email" example:"agent@example.com"`
	Password string `json:"password" validate:"required,min=8" example:"password123"`
	Role     string `json:"role" validate:"required,oneof=Admin Finance Agent_Normal Agent_Credit" example:"Agent_Normal"`
	AgentID  string `json:"agent_id" example:"7f9c24e5-1f5a-4f05-9a3a-64c2f45b39d8"`
}

// List returns back-office users
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Router /users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// Create registers a back-office user
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User request"
// @Success 201 {object} models.User
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /users [post]
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	user, err := h.service.Create(r.Context(), services.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
		AgentID:  req.AgentID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}
