// Package monitor renders the control-loop script that runs inside the solver
// and implements its side of the control-file handshake.
//
// The script polls the control record every PollInterval. On go it
// acknowledges the command, clears the database, reads the driver's input
// parameters, runs the launcher (which includes the model's main script),
// dumps every parameter to the output file, exports any requested time
// history and finally marks the record done with the run counter bumped.
// On kill it deletes the record and exits the solver.
package monitor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// File names shared between the driver and the script. The solver addresses
// files as name + extension, hence the split.
const (
	Ext          = "femloop"
	ScriptFile   = "monitor." + Ext
	LauncherFile = "main." + Ext
	InputFile    = "par_in." + Ext
	OutputFile   = "par_out." + Ext
	LogFile      = "femloop.log"

	HistoryRequestFile = "hist_req." + Ext
	HistoryOutputFile  = "hist_out." + Ext
	HistoryMacro       = "femhist"
)

// Params are the two substitution points of the script.
type Params struct {
	// Launcher is the launcher file name, e.g. "main.femloop".
	Launcher string
	// PollInterval is how long the script sleeps between reads of the record.
	PollInterval time.Duration
}

var scriptTemplate = template.Must(template.New("monitor").Funcs(template.FuncMap{
	"base":    fileBase,
	"ext":     fileExt,
	"seconds": seconds,
}).Parse(`! femloop monitor. Regenerated by the driver on every start; do not edit.
/NOPR
/NERR,,99999999
*CREATE,{{.Macro}},mac
! ARG1 = 0 starts a new export file, otherwise ARG1 is the series to export.
/POST26
*IF,ARG1,EQ,0,THEN
  *CFOPEN,hist_out,femloop
  *CFCLOS
  *GO,:FEMHIST_END
*ENDIF
*GET,FEMLOOP_NT,VARI,0,NSETS
*DEL,FEMLOOP_V,,NOPR
*DIM,FEMLOOP_V,ARRAY,FEMLOOP_NT
VGET,FEMLOOP_V(1),ARG1
*CFOPEN,hist_out,femloop,,APPEND
*VWRITE,ARG1
('*HISTVAR=',F8.0)
*VWRITE,FEMLOOP_V(1)
(E24.15)
*VWRITE
('*HISTEND')
*CFCLOS
:FEMHIST_END
*END
:FEMLOOP_POLL
/WAIT,{{seconds .PollInterval}}
/INPUT,control,femloop
*IF,FEMLOOP_KILL,EQ,1,THEN
  /DELETE,control,femloop
  /EXIT,NOSAVE
*ENDIF
*IF,FEMLOOP_GO,EQ,0,:FEMLOOP_POLL
FEMLOOP_GO=0
*CFOPEN,control,femloop
*VWRITE,FEMLOOP_RUNS
('FEMLOOP_GO=0',/,'FEMLOOP_DONE=0',/,'FEMLOOP_KILL=0',/,'FEMLOOP_RUNS=',F12.0)
*CFCLOS
/CLEAR,NOSTART
/INPUT,par_in,femloop
/INPUT,{{base .Launcher}},{{ext .Launcher}}
FINISH
PARSAV,ALL,par_out,femloop
/INQUIRE,FEMLOOP_HR,EXIST,hist_req,femloop
*IF,FEMLOOP_HR,EQ,1,THEN
  /INPUT,hist_req,femloop
*ENDIF
FINISH
/INPUT,control,femloop
FEMLOOP_RUNS=FEMLOOP_RUNS+1
*CFOPEN,control,femloop
*VWRITE,FEMLOOP_RUNS
('FEMLOOP_GO=0',/,'FEMLOOP_DONE=1',/,'FEMLOOP_KILL=0',/,'FEMLOOP_RUNS=',F12.0)
*CFCLOS
*GO,:FEMLOOP_POLL
`))

// Render returns the script text for p.
func Render(p Params) ([]byte, error) {
	if p.Launcher == "" {
		p.Launcher = LauncherFile
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 500 * time.Millisecond
	}
	var buf bytes.Buffer
	data := struct {
		Params
		Macro string
	}{Params: p, Macro: HistoryMacro}
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("monitor: render script: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the script into runDir and returns its path.
func Write(runDir string, p Params) (string, error) {
	content, err := Render(p)
	if err != nil {
		return "", err
	}
	path := filepath.Join(runDir, ScriptFile)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("monitor: write script: %w", err)
	}
	return path, nil
}

func fileBase(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func fileExt(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
