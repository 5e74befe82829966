// Package scanner invokes the external vulnerability scanner.
//
// The scanner is an opaque child process. It receives the project URL as its
// last argument and is expected to leave a JSON report file in its working
// directory. Only the exit status and that file are consumed:
//
//	s := scanner.New(scanner.Config{
//		Command: "python3",
//		Args:    []string{"bitrix24_vulnerability_scanner.py"},
//		WorkDir: "/opt/scanner",
//	}, logger)
//
//	result, err := s.Run(ctx, "https://portal.example.com")
//
// Each run is bounded by Config.Timeout and never holds a database
// transaction. Report files older than the run are ignored so a stale file
// from an earlier scan is never picked up.
package scanner
