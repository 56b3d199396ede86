package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractISBN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind IdentifierKind
		want     string
	}{
		{
			name:     "hyphenated isbn13 in prose",
			input:    "see ISBN 978-0-349-11916-8 for details",
			wantKind: KindISBN13,
			want:     "978-0-349-11916-8",
		},
		{
			name:     "bare isbn13",
			input:    "9780349119168",
			wantKind: KindISBN13,
			want:     "9780349119168",
		},
		{
			name:     "spaced isbn13",
			input:    "isbn: 978 964 6736 71 9",
			wantKind: KindISBN13,
			want:     "978 964 6736 71 9",
		},
		{
			name:     "isbn10 with X check",
			input:    "ISBN 0-8044-2957-X (pbk.)",
			wantKind: KindISBN10,
			want:     "0-8044-2957-X",
		},
		{
			name:     "isbn13 preferred over earlier isbn10",
			input:    "0349119163 or 9780349119168",
			wantKind: KindISBN13,
			want:     "9780349119168",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ExtractISBN(tt.input, false)

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, id.Kind)
			assert.Equal(t, tt.want, id.Value)
		})
	}
}

func TestExtractISBN_MixedSeparatorsRejected(t *testing.T) {
	// a hyphen after the prefix and spaces elsewhere is not one consistent
	// separator, so only the space-separated tail qualifies (as an ISBN-10)
	id, err := ExtractISBN("978-0 349 11916 8", false)

	require.NoError(t, err)
	assert.Equal(t, KindISBN10, id.Kind)
	assert.Equal(t, "0 349 11916 8", id.Value)
}

func TestExtractISBN_NotFound(t *testing.T) {
	_, err := ExtractISBN("nothing to see here", false)

	var nf *IdentifierNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ISBN", nf.Kind)
}

func TestExtractISBN_ASCIIDigitsOnly(t *testing.T) {
	_, err := ExtractISBN("۹۷۸۰۳۴۹۱۱۹۱۶۸", false)
	assert.True(t, IsIdentifierNotFound(err))

	id, err := ExtractISBN("شابک ۱۲ 978-0-349-11916-8", false)
	require.NoError(t, err)
	assert.Equal(t, KindISBN13, id.Kind)
	assert.Equal(t, "9780349119168", CanonicalISBN(id.Value))
}

func TestExtractISBN_Pure(t *testing.T) {
	t.Run("whole input is taken verbatim", func(t *testing.T) {
		id, err := ExtractISBN("978-0-349-11916-8", true)

		require.NoError(t, err)
		assert.Equal(t, KindISBN13, id.Kind)
		assert.Equal(t, "978-0-349-11916-8", id.Value)
	})

	t.Run("short input is isbn10", func(t *testing.T) {
		id, err := ExtractISBN("0349119163", true)

		require.NoError(t, err)
		assert.Equal(t, KindISBN10, id.Kind)
	})
}

func TestCanonicalISBN(t *testing.T) {
	assert.Equal(t, CanonicalISBN("978-0-349-11916-8"), CanonicalISBN("9780349119168"))
	assert.Equal(t, "080442957X", CanonicalISBN("0-8044-2957-x"))
	assert.Equal(t, "0349119163", CanonicalISBN("0 349 11916 3"))
}

func TestSameISBN(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "separators ignored", a: "978-0-349-11916-8", b: "978 0 349 11916 8", want: true},
		{name: "different numbers", a: "9780349119168", b: "9780349119169", want: false},
		{name: "leading zero is significant", a: "0123456789", b: "123456789", want: false},
		{name: "empty never matches", a: "", b: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameISBN(tt.a, tt.b))
		})
	}
}

func TestValidISBN10(t *testing.T) {
	assert.True(t, ValidISBN10("0-349-11916-3"))
	assert.True(t, ValidISBN10("080442957X"))
	assert.False(t, ValidISBN10("0349119164"))
	assert.False(t, ValidISBN10("12345"))
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind IdentifierKind
		want     string
	}{
		{name: "article url", input: "https://www.example.com/news/story-1", wantKind: KindURL, want: "https://www.example.com/news/story-1"},
		{name: "doi url", input: "https://doi.org/10.1000/xyz123", wantKind: KindDOI, want: "10.1000/xyz123"},
		{name: "bare doi", input: "10.1038/nphys1170", wantKind: KindDOI, want: "10.1038/nphys1170"},
		{name: "isbn13", input: "978-0-349-11916-8", wantKind: KindISBN13, want: "978-0-349-11916-8"},
		{name: "valid isbn10", input: "0349119163", wantKind: KindISBN10, want: "0349119163"},
		{name: "short number is oclc", input: "22239204", wantKind: KindOCLC, want: "22239204"},
		{name: "prefixed oclc", input: "oclc: 0349119163", wantKind: KindOCLC, want: "0349119163"},
		{name: "marc control prefix", input: "(OCoLC)12345", wantKind: KindOCLC, want: "12345"},
		{name: "marc control prefix with space", input: "(OCoLC) 0349119163", wantKind: KindOCLC, want: "0349119163"},
		{name: "ocm prefix", input: "ocm22239204", wantKind: KindOCLC, want: "22239204"},
		{name: "ten digits failing checksum", input: "1234567890", wantKind: KindOCLC, want: "1234567890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentifier(tt.input)

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, id.Kind)
			assert.Equal(t, tt.want, id.Value)
		})
	}
}

func TestParseIdentifier_Unknown(t *testing.T) {
	for _, input := range []string{"", "   ", "hello world"} {
		_, err := ParseIdentifier(input)
		assert.True(t, IsIdentifierNotFound(err), "input %q", input)
	}
}
