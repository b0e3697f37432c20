package fulfillment

import (
	"reflect"
	"testing"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

func TestMergeCartLines(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "B", Quantity: 1},
		{ProductID: "A", Quantity: 2},
		{ProductID: "B", Quantity: 3},
		{ProductID: "C", Quantity: 1},
		{ProductID: "A", Quantity: 1},
	}

	got := MergeCartLines(lines)
	want := []domain.CartLine{
		{ProductID: "B", Quantity: 4},
		{ProductID: "A", Quantity: 3},
		{ProductID: "C", Quantity: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected merge result: got %+v, want %+v", got, want)
	}
	if lines[0].Quantity != 1 {
		t.Fatalf("input must not be mutated, got %+v", lines[0])
	}
}

func TestMergeCartLines_Empty(t *testing.T) {
	if got := MergeCartLines(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}
