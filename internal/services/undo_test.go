package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/undo"
)

func TestApplyUndoCreateNodeRemovesIt(t *testing.T) {
	gdb := newTestDB(t)

	kept := seedNode(t, gdb, 1, "残る手順", 0)
	created := seedNode(t, gdb, 1, "取り消される手順", 1)

	nodes, err := ApplyUndo(gdb, 1, undo.CreateNode{NodeID: created.ID})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, kept.ID, nodes[0].ID)

	err = gdb.First(&models.FlowNode{}, created.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestApplyUndoCreateNodeAlreadyGone(t *testing.T) {
	gdb := newTestDB(t)

	seedNode(t, gdb, 1, "手順", 0)

	nodes, err := ApplyUndo(gdb, 1, undo.CreateNode{NodeID: 9999})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestApplyUndoCreateNodeScopedToProject(t *testing.T) {
	gdb := newTestDB(t)

	foreign := seedNode(t, gdb, 2, "他プロジェクトの手順", 0)

	_, err := ApplyUndo(gdb, 1, undo.CreateNode{NodeID: foreign.ID})
	require.NoError(t, err)

	var still models.FlowNode
	assert.NoError(t, gdb.First(&still, foreign.ID).Error)
}

func TestApplyUndoDeleteNodeRestoresIt(t *testing.T) {
	gdb := newTestDB(t)

	nodes, err := ApplyUndo(gdb, 1, undo.DeleteNode{ProjectID: 1, Text: "復元される手順", Order: 3})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.NotZero(t, nodes[0].ID)
	assert.Equal(t, "復元される手順", nodes[0].Text)
	assert.Equal(t, 3, nodes[0].Order)
	assert.Empty(t, nodes[0].Actor, "actor is not part of the recorded snapshot")
	assert.Empty(t, nodes[0].Step)
}

func TestApplyUndoUpdateNodeRestoresText(t *testing.T) {
	gdb := newTestDB(t)

	node := seedNode(t, gdb, 1, "編集後のテキスト", 0)

	nodes, err := ApplyUndo(gdb, 1, undo.UpdateNode{NodeID: node.ID, OldText: "編集前のテキスト"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, node.ID, nodes[0].ID)
	assert.Equal(t, "編集前のテキスト", nodes[0].Text)
}

func TestApplyUndoUpdateNodeAlreadyGone(t *testing.T) {
	gdb := newTestDB(t)

	nodes, err := ApplyUndo(gdb, 1, undo.UpdateNode{NodeID: 9999, OldText: "無関係"})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestApplyUndoReorderNodesRestoresOrders(t *testing.T) {
	gdb := newTestDB(t)

	first := seedNode(t, gdb, 1, "甲", 2)
	second := seedNode(t, gdb, 1, "乙", 0)
	third := seedNode(t, gdb, 1, "丙", 1)

	nodes, err := ApplyUndo(gdb, 1, undo.ReorderNodes{OldOrders: map[uint]int{
		first.ID:  0,
		second.ID: 1,
		third.ID:  2,
	}})
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, first.ID, nodes[0].ID)
	assert.Equal(t, second.ID, nodes[1].ID)
	assert.Equal(t, third.ID, nodes[2].ID)
}

type bogusOperation struct{}

func (bogusOperation) Kind() string { return "noop" }

func TestApplyUndoUnknownOperation(t *testing.T) {
	gdb := newTestDB(t)

	_, err := ApplyUndo(gdb, 1, bogusOperation{})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeDatabaseError, appErr.Code)
}
