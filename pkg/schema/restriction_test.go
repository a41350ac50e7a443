package schema

import (
	"testing"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestrictionsValidate(t *testing.T) {
	tests := []struct {
		name  string
		rules string
		kind  models.Kind
		value string
		ok    bool
	}{
		{"no rules", ``, models.KindScalar, "5", true},
		{"range ok", `{"VALUERANGE":[0,10]}`, models.KindScalar, "5", true},
		{"range low", `{"VALUERANGE":[0,10]}`, models.KindScalar, "-1", false},
		{"enum text", `{"ENUM":["on","off"]}`, models.KindDescriptor, "off", true},
		{"enum miss", `{"ENUM":["on","off"]}`, models.KindDescriptor, "maybe", false},
		{"enum numeric", `{"enum":[1,2]}`, models.KindScalar, "2.0", true},
		{"greater", `{"GREATERTHAN":0}`, models.KindArray, "[[1,2],[3,4]]", true},
		{"greater fails", `{"GREATERTHAN":1}`, models.KindArray, "[[1,2],[3,4]]", false},
		{"lesseq", `{"LESSTHANEQ":4}`, models.KindArray, "[1,4]", true},
		{"pattern", `{"VALUEPATTERN":"^[a-z]+$"}`, models.KindDescriptor, "abc", true},
		{"pattern fails", `{"VALUEPATTERN":"^[a-z]+$"}`, models.KindDescriptor, "ABC", false},
		{"maxlen text", `{"MAXLEN":3}`, models.KindDescriptor, "abcd", false},
		{"maxlen array", `{"MAXLEN":3}`, models.KindArray, "[1,2,3]", true},
		{"notnull", `{"NOTNULL":true}`, models.KindDescriptor, "", false},
		{"equal", `{"EQUALTO":3}`, models.KindScalar, "3", true},
		{"not equal", `{"NOTEQUALTO":3}`, models.KindScalar, "3", false},
		{"numplaces", `{"NUMPLACES":2}`, models.KindScalar, "1.234", false},
		{"increasing", `{"INCREASING":true}`, models.KindArray, "[1,2,3]", true},
		{"increasing fails", `{"INCREASING":true}`, models.KindArray, "[1,3,2]", false},
		{"decreasing per column", `{"DECREASING":true}`, models.KindTimeSeries,
			`{"a":{"t1":3,"t2":1},"b":{"t1":9,"t2":2}}`, true},
		{"column range", `{"VALUERANGE":[0,5]}`, models.KindDataFrame,
			`{"a":{"0":1,"1":[2,3]},"b":{"0":4,"1":9}}`, false},
		{"unknown skipped", `{"VALUERANGE":[0,1]}`, models.KindUnknown, `{"x":5}`, true},
		{"unknown rule", `{"SUMTO":1}`, models.KindScalar, "1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRestrictions(tt.rules)
			require.NoError(t, err)

			err = r.Validate(tt.kind, tt.value)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeValidation))
		})
	}
}

func TestParseRestrictionsRejectsBadJSON(t *testing.T) {
	_, err := ParseRestrictions(`{"VALUERANGE":`)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeValidation))
}
