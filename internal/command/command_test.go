package command_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/skillfleet/fleet/internal/api"
	"github.com/skillfleet/fleet/internal/command"
	"github.com/skillfleet/fleet/internal/testutil"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantArgs []string
		wantErr  error
	}{
		{"/optimize my-skill", "optimize", []string{"my-skill"}, nil},
		{"  /STATUS  job-1 ", "status", []string{"job-1"}, nil},
		{"/help", "help", []string{}, nil},
		{"/list", "list", []string{}, nil},
		{"hello there", "", nil, command.ErrNotCommand},
		{"/", "", nil, command.ErrUnknownCommand},
		{"/deploy now", "deploy", []string{"now"}, command.ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := command.Parse(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if cmd.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cmd.Name, tt.wantName)
			}
			if !reflect.DeepEqual(cmd.Args, tt.wantArgs) {
				t.Errorf("Args = %q, want %q", cmd.Args, tt.wantArgs)
			}
		})
	}
}

func TestHelpListsAllCommands(t *testing.T) {
	help := command.Help()
	for name := range command.Known {
		if !strings.Contains(help, "/"+name) {
			t.Errorf("help missing /%s", name)
		}
	}
}

func TestAPIExecutor(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SetCommand("optimize", `{"success":true,"message":"optimization started","job_id":"job-42"}`)
	exec := command.NewAPIExecutor(api.New(f.URL, "", time.Second))

	cmd, _ := command.Parse("/optimize my-skill")
	res, err := exec.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success || res.JobID != "job-42" || res.Message != "optimization started" {
		t.Errorf("result = %+v", res)
	}

	help, _ := command.Parse("/help")
	res, err = exec.Execute(context.Background(), help)
	if err != nil || !strings.HasPrefix(res.Message, "Commands:") {
		t.Errorf("help result = %+v, %v", res, err)
	}
}
