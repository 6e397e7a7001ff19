package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeControl(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ControlPayload
		wantErr bool
	}{
		{
			name: "key",
			raw:  `{"kind":"key","key":"UP"}`,
			want: ControlPayload{Kind: ControlKey, Key: "UP"},
		},
		{
			name: "text",
			raw:  `{"kind":"text","text":"netflix"}`,
			want: ControlPayload{Kind: ControlText, Text: "netflix"},
		},
		{
			name: "empty text is legal",
			raw:  `{"kind":"text"}`,
			want: ControlPayload{Kind: ControlText},
		},
		{
			name: "launch",
			raw:  `{"kind":"launch","appId":"12"}`,
			want: ControlPayload{Kind: ControlLaunch, AppID: "12"},
		},
		{name: "missing key", raw: `{"kind":"key"}`, wantErr: true},
		{name: "missing appId", raw: `{"kind":"launch"}`, wantErr: true},
		{name: "unknown kind", raw: `{"kind":"reboot"}`, wantErr: true},
		{name: "not an object", raw: `"key"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeControl(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("publisher")
	require.NoError(t, err)
	require.Equal(t, RolePublisher, role)

	role, err = ParseRole("subscriber")
	require.NoError(t, err)
	require.Equal(t, RoleSubscriber, role)

	_, err = ParseRole("viewer")
	require.ErrorIs(t, err, ErrUnknownRole)
}
