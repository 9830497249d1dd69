// internal/handlers/reward/reward_handler.go
package reward

import (
	"net/http"

	"tuzo-service/internal/domain/reward"
	"tuzo-service/internal/middleware"
	"tuzo-service/internal/pkg/response"
	service "tuzo-service/internal/service/reward"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RewardHandler struct {
	rewardService *service.RewardService
}

func NewRewardHandler(rewardService *service.RewardService) *RewardHandler {
	return &RewardHandler{rewardService: rewardService}
}

func (h *RewardHandler) ListRewards(c *gin.Context) {
	var filters reward.RewardListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}
	if filters.Customer != "" {
		id, err := uuid.Parse(filters.Customer)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid customer ID", err)
			return
		}
		filters.CustomerID = &id
	}

	result, err := h.rewardService.List(
		c.Request.Context(),
		middleware.MustGetBusinessID(c),
		middleware.CustomerScope(c),
		&filters,
	)
	if err != nil {
		response.FromError(c, "failed to list rewards", err)
		return
	}

	response.Success(c, http.StatusOK, "rewards retrieved", result)
}

// RedeemReward marks a reward as used
func (h *RewardHandler) RedeemReward(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid reward ID", err)
		return
	}

	result, err := h.rewardService.Redeem(c.Request.Context(), middleware.MustGetBusinessID(c), id)
	if err != nil {
		response.FromError(c, "failed to redeem reward", err)
		return
	}

	response.Success(c, http.StatusOK, "reward redeemed successfully", result)
}
