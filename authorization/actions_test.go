package authorization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActions_App(t *testing.T) {
	actions := NewActions()

	action, err := actions.App.Get("dashboards")
	require.NoError(t, err)
	assert.Equal(t, Action("app:dashboards"), action)
}

func TestActions_API(t *testing.T) {
	actions := NewActions()

	action, err := actions.API.Get("dashboards", "read")
	require.NoError(t, err)
	assert.Equal(t, Action("api:dashboards/read"), action)
}

func TestActions_SavedObject(t *testing.T) {
	actions := NewActions()

	action, err := actions.SavedObject.Get("dashboard", "bulk_create")
	require.NoError(t, err)
	assert.Equal(t, Action("saved_object:dashboard/bulk_create"), action)
}

func TestActions_UI(t *testing.T) {
	actions := NewActions()

	action, err := actions.UI.Get("dashboards", "save")
	require.NoError(t, err)
	assert.Equal(t, Action("ui:dashboards/save"), action)
}

func TestActions_RejectsReservedDelimiters(t *testing.T) {
	actions := NewActions()

	tests := []struct {
		name    string
		segment string
	}{
		{"empty", ""},
		{"namespace delimiter", "foo:bar"},
		{"segment delimiter", "foo/bar"},
		{"lone colon", ":"},
		{"lone slash", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := actions.App.Get(tt.segment)
			assert.ErrorIs(t, err, ErrInvalidActionSegment)

			_, err = actions.API.Get(tt.segment, "read")
			assert.ErrorIs(t, err, ErrInvalidActionSegment)

			_, err = actions.API.Get("feature", tt.segment)
			assert.ErrorIs(t, err, ErrInvalidActionSegment)

			_, err = actions.SavedObject.Get(tt.segment, "get")
			assert.ErrorIs(t, err, ErrInvalidActionSegment)

			_, err = actions.UI.Get("feature", tt.segment)
			assert.ErrorIs(t, err, ErrInvalidActionSegment)
		})
	}
}

func TestParseAction_RoundTrip(t *testing.T) {
	actions := NewActions()

	appAction, err := actions.App.Get("analytics")
	require.NoError(t, err)
	apiAction, err := actions.API.Get("dashboards", "write")
	require.NoError(t, err)
	soAction, err := actions.SavedObject.Get("index-pattern", "find")
	require.NoError(t, err)
	uiAction, err := actions.UI.Get("management", "show")
	require.NoError(t, err)

	tests := []struct {
		action    Action
		namespace string
		segments  []string
	}{
		{appAction, NamespaceApp, []string{"analytics"}},
		{apiAction, NamespaceAPI, []string{"dashboards", "write"}},
		{soAction, NamespaceSavedObject, []string{"index-pattern", "find"}},
		{uiAction, NamespaceUI, []string{"management", "show"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			parsed, err := ParseAction(tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.namespace, parsed.Namespace)
			assert.Equal(t, tt.segments, parsed.Segments)
		})
	}
}

func TestParseAction_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		action Action
	}{
		{"empty", ""},
		{"no namespace", "dashboards"},
		{"empty namespace", ":dashboards"},
		{"empty rest", "app:"},
		{"unknown namespace", "widget:dashboards"},
		{"app with segment delimiter", "app:dashboards/read"},
		{"api missing operation", "api:dashboards"},
		{"api empty operation", "api:dashboards/"},
		{"api extra segment", "api:dashboards/read/extra"},
		{"saved object missing operation", "saved_object:dashboard"},
		{"ui empty feature", "ui:/save"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAction(tt.action)
			assert.Error(t, err)
		})
	}
}
