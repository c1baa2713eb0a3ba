package transport

import (
	"bytes"
	"fmt"
	"strings"
)

// Client-to-controller type bytes.
const (
	typeInstruction byte = 'I'
	typeScreen      byte = 'X'
	typeError       byte = 'E'
	typeGetActions  byte = 'G'
)

// Controller-to-client markers.
const (
	markerAppSelected = "##$$##"
	markerSubtask     = "$$##$$"
	markerFinished    = "$$$$$"
)

// MessageKind classifies a controller line.
type MessageKind int

const (
	MessageAction MessageKind = iota
	MessageAppSelected
	MessageSubtask
	MessageFinished
)

func (k MessageKind) String() string {
	switch k {
	case MessageAppSelected:
		return "app-selected"
	case MessageSubtask:
		return "subtask"
	case MessageFinished:
		return "finished"
	default:
		return "action"
	}
}

// Message is one line received from the controller. Payload is the text
// after the marker, or the whole line for actions.
type Message struct {
	Kind    MessageKind
	Payload string
}

// ParseMessage classifies a controller line.
func ParseMessage(line string) Message {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.HasPrefix(line, markerAppSelected):
		return Message{Kind: MessageAppSelected, Payload: line[len(markerAppSelected):]}
	case strings.HasPrefix(line, markerSubtask):
		return Message{Kind: MessageSubtask, Payload: line[len(markerSubtask):]}
	case strings.HasPrefix(line, markerFinished):
		return Message{Kind: MessageFinished, Payload: line[len(markerFinished):]}
	default:
		return Message{Kind: MessageAction, Payload: line}
	}
}

// ErrorType is the coarse category carried in ERROR_TYPE.
type ErrorType string

const (
	ErrorTypeAction  ErrorType = "ACTION"
	ErrorTypeNetwork ErrorType = "NETWORK"
	ErrorTypeSystem  ErrorType = "SYSTEM"
	ErrorTypeUnknown ErrorType = "UNKNOWN"
)

// ErrorReport is the body of an E frame.
type ErrorReport struct {
	Type           ErrorType
	Message        string
	Action         string
	Instruction    string
	PreviousScreen []byte
	Remark         string
}

// Encode renders the report as KEY:value lines. Values are flattened to a
// single line; PRE_XML is the only multi-line field and always precedes
// REMARK.
func (r ErrorReport) Encode() []byte {
	var b bytes.Buffer
	t := r.Type
	if t == "" {
		t = ErrorTypeUnknown
	}
	fmt.Fprintf(&b, "ERROR_TYPE:%s\n", t)
	fmt.Fprintf(&b, "ERROR_MESSAGE:%s\n", oneLine(r.Message))
	if r.Action != "" {
		fmt.Fprintf(&b, "ACTION:%s\n", oneLine(r.Action))
	}
	if r.Instruction != "" {
		fmt.Fprintf(&b, "INSTRUCTION:%s\n", oneLine(r.Instruction))
	}
	if len(r.PreviousScreen) > 0 {
		b.WriteString("PRE_XML:\n")
		b.Write(bytes.TrimRight(r.PreviousScreen, "\n"))
		b.WriteByte('\n')
	}
	if r.Remark != "" {
		fmt.Fprintf(&b, "REMARK:%s\n", oneLine(r.Remark))
	}
	return bytes.TrimRight(b.Bytes(), "\n")
}

// ParseErrorReport reads an E frame body as the controller does.
func ParseErrorReport(body []byte) (ErrorReport, error) {
	var r ErrorReport
	var xml []string
	inXML := false
	for _, line := range strings.Split(string(body), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && isReportKey(key) {
			inXML = false
			switch key {
			case "ERROR_TYPE":
				r.Type = ErrorType(value)
			case "ERROR_MESSAGE":
				r.Message = value
			case "ACTION":
				r.Action = value
			case "INSTRUCTION":
				r.Instruction = value
			case "PRE_XML":
				inXML = true
				if value != "" {
					xml = append(xml, value)
				}
			case "REMARK":
				r.Remark = value
			}
			continue
		}
		if inXML {
			xml = append(xml, line)
		}
	}
	if r.Type == "" {
		return ErrorReport{}, fmt.Errorf("error report has no ERROR_TYPE")
	}
	if len(xml) > 0 {
		r.PreviousScreen = []byte(strings.Join(xml, "\n"))
	}
	return r, nil
}

func isReportKey(k string) bool {
	switch k {
	case "ERROR_TYPE", "ERROR_MESSAGE", "ACTION", "INSTRUCTION", "PRE_XML", "REMARK":
		return true
	}
	return false
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
