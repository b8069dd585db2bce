package usecase

import "testing"

func TestPostProcessAnswer(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: emptyAnswerApology},
		{name: "whitespace", in: "  \n ", want: emptyAnswerApology},
		{name: "prefix", in: "Answer: The Creta is a good pick.", want: "The Creta is a good pick."},
		{name: "heading", in: "## Top picks\nCreta", want: "Top picks\nCreta"},
		{name: "bold", in: "The **Creta** and __Seltos__", want: "The Creta and Seltos"},
		{name: "italic", in: "A *very* good _choice_ here", want: "A very good choice here"},
		{name: "lone star", in: "Price * 2", want: "Price * 2"},
		{name: "bullets", in: "Options:\n* Creta\n- Seltos\n+ Nexon\n1. Brezza", want: "Options:\n• Creta\n• Seltos\n• Nexon\n• Brezza"},
		{name: "bullet spacing", in: "•Creta\n  • Seltos  ", want: "• Creta\n• Seltos"},
		{name: "blank runs", in: "One\n\n\n\nTwo\n \nThree", want: "One\n\nTwo\n\nThree"},
		{name: "stray bold", in: "Total** cost", want: "Total cost"},
	}

	for _, tc := range cases {
		if got := PostProcessAnswer(tc.in); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
