package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/models"
)

// Account representation safe to return to the client
type accountResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	MemberID  string    `json:"member_id"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newAccountResponse(a models.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		MemberID:  a.MemberID,
		FullName:  a.FullName,
		Role:      a.Role,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
	}
}
