package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateFunnelRequest struct {
	Name string `json:"name" binding:"required,max=120"`
}

type RenameFunnelRequest struct {
	Name string `json:"name" binding:"required,max=120"`
}

type CreateStageRequest struct {
	Title  string `json:"title" binding:"required,max=120"`
	Color  string `json:"color" binding:"omitempty,max=32"`
	IsWon  bool   `json:"isWon"`
	IsLost bool   `json:"isLost"`
}

type UpdateStageRequest struct {
	Title  *string `json:"title,omitempty" binding:"omitempty,max=120"`
	Color  *string `json:"color,omitempty" binding:"omitempty,max=32"`
	IsWon  *bool   `json:"isWon,omitempty"`
	IsLost *bool   `json:"isLost,omitempty"`
}

type ReorderStagesRequest struct {
	StageIDs []uuid.UUID `json:"stageIds" binding:"required,min=1"`
}

type FunnelResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type FunnelListResponse struct {
	Funnels []FunnelResponse `json:"funnels"`
}

type StageResponse struct {
	ID            uuid.UUID `json:"id"`
	FunnelID      uuid.UUID `json:"funnelId"`
	Title         string    `json:"title"`
	Color         string    `json:"color"`
	OrderPosition int       `json:"orderPosition"`
	IsWon         bool      `json:"isWon"`
	IsLost        bool      `json:"isLost"`
}

type StageListResponse struct {
	Stages []StageResponse `json:"stages"`
}
