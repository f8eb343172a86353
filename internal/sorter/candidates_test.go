package sorter

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCandidatesOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		label string
		want  []string
	}{
		{
			name:  "plain",
			label: "Bills",
			want: []string{
				"Bills", "BILLS", "bills",
				"INBOX/Bills", "INBOX.Bills", "Folders/Bills", "Labels/Bills",
			},
		},
		{
			name:  "duplicates-dropped",
			label: "inbox",
			want: []string{
				"inbox", "INBOX",
				"INBOX/inbox", "INBOX.inbox", "Folders/inbox", "Labels/inbox",
			},
		},
		{
			name:  "nested",
			label: "Folders/Bills",
			want: []string{
				"Folders/Bills", "FOLDERS/BILLS", "folders/bills",
				"INBOX/Folders/Bills", "INBOX.Folders/Bills", "Folders/Folders/Bills", "Labels/Folders/Bills",
			},
		},
		{
			name:  "empty",
			label: "  ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Candidates(tc.label, Transforms(DefaultPrefixes))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreateTransformsExactFirst(t *testing.T) {
	t.Parallel()

	got := Candidates("Receipts", CreateTransforms([]string{"INBOX.", "INBOX/"}))
	want := []string{"Receipts", "INBOX.Receipts", "INBOX/Receipts"}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("create order mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidatesCustomPrefixes(t *testing.T) {
	t.Parallel()

	got := Candidates("News", Transforms([]string{"Archive/"}))
	want := []string{"News", "NEWS", "news", "Archive/News"}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidatesNeverCarryQuotes(t *testing.T) {
	t.Parallel()

	for _, transforms := range [][]Transform{Transforms(DefaultPrefixes), CreateTransforms(DefaultPrefixes)} {
		for _, name := range Candidates("Bills", transforms) {
			if strings.ContainsRune(name, '"') {
				t.Errorf("candidate %q contains a quote character", name)
			}
		}
	}
}
