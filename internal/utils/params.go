package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetProjectID(ctx *gin.Context) (uint64, error) {
	var err error

	projectIDStr := ctx.Param("project_id")

	if projectIDStr == "" {
		return 0, errors.New("Project ID not found")
	}

	projectID, err := strconv.ParseUint(projectIDStr, 10, 32)

	if err != nil {
		return 0, errors.New("Invalid Project ID")
	}

	return projectID, nil
}

func GetNodeID(ctx *gin.Context) (uint64, error) {
	var err error

	nodeIDStr := ctx.Param("node_id")

	if nodeIDStr == "" {
		return 0, errors.New("Node ID not found")
	}

	nodeID, err := strconv.ParseUint(nodeIDStr, 10, 32)

	if err != nil {
		return 0, errors.New("Invalid Node ID")
	}

	return nodeID, nil
}

func GetHearingID(ctx *gin.Context) (uint64, error) {
	var err error

	hearingIDStr := ctx.Param("hearing_id")

	if hearingIDStr == "" {
		return 0, errors.New("Hearing ID not found")
	}

	hearingID, err := strconv.ParseUint(hearingIDStr, 10, 32)

	if err != nil {
		return 0, errors.New("Invalid Hearing ID")
	}

	return hearingID, nil
}
