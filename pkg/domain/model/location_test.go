package model_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

func TestSpan_ReversedRelativeTo(t *testing.T) {
	forward := model.Span{Start: 20, End: 30}
	reverse := model.Span{Start: 70, End: 80, Reverse: true}

	gt.Value(t, forward.ReversedRelativeTo(100)).Equal(reverse)
	gt.Value(t, reverse.ReversedRelativeTo(100)).Equal(forward)
}

func TestMap_NucleicReversedPreservesOrder(t *testing.T) {
	fmap, err := model.NewMap([]model.Span{{Start: 20, End: 30}, {Start: 40, End: 50}}, 100)
	gt.NoError(t, err).Required()

	got := fmap.NucleicReversed()
	want := []model.Span{
		{Start: 70, End: 80, Reverse: true},
		{Start: 50, End: 60, Reverse: true},
	}
	if diff := cmp.Diff(want, got.Spans); diff != "" {
		t.Errorf("NucleicReversed() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewMap_OutOfRange(t *testing.T) {
	_, err := model.NewMap([]model.Span{{Start: 5, End: 120}}, 100)
	gt.Error(t, err)

	_, err = model.NewMap([]model.Span{{Start: 10, End: 5}}, 100)
	gt.Error(t, err)

	_, err = model.NewMap([]model.Span{{Start: -1, End: 5}}, 100)
	gt.Error(t, err)
}

func TestMap_Covered(t *testing.T) {
	m, err := model.MapFromCoordinates([][2]int{{40, 50}, {10, 20}, {15, 25}, {25, 30}, {60, 60}}, 100)
	gt.NoError(t, err).Required()

	got := m.Covered().Coordinates()
	want := [][2]int{{10, 30}, {40, 50}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Covered() mismatch (-want +got):\n%s", diff)
	}
}

func TestMap_ShadowAndCovering(t *testing.T) {
	m, err := model.MapFromCoordinates([][2]int{{1, 3}, {5, 7}}, 12)
	gt.NoError(t, err).Required()

	gt.Number(t, m.Len()).Equal(4)
	gt.Number(t, m.Start()).Equal(1)
	gt.Number(t, m.End()).Equal(7)

	if diff := cmp.Diff([][2]int{{1, 7}}, m.CoveringSpan().Coordinates()); diff != "" {
		t.Errorf("CoveringSpan() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][2]int{{0, 1}, {3, 5}, {7, 12}}, m.Shadow().Coordinates()); diff != "" {
		t.Errorf("Shadow() mismatch (-want +got):\n%s", diff)
	}
}

func TestMap_Useful(t *testing.T) {
	gt.False(t, model.Map{ParentLength: 10}.Useful())
	gt.False(t, model.Map{Spans: []model.Span{{Start: 3, End: 3}}, ParentLength: 10}.Useful())
	gt.True(t, model.Map{Spans: []model.Span{{Start: 3, End: 4}}, ParentLength: 10}.Useful())
}
