package task

import "runtime"

// Template is a predefined task definition offered at the front-end
// boundary as a starting point for a create intent.
type Template struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Command         string `json:"command"`
	IntervalSeconds int64  `json:"interval_seconds"`
}

// Templates returns the built-in templates with commands picked for the
// host platform.
func Templates() []Template {
	pick := func(unix, windows string) string {
		if runtime.GOOS == "windows" {
			return windows
		}
		return unix
	}
	return []Template{
		{
			Name:            "System Cleanup",
			Description:     "Remove temp files",
			Command:         pick("find /tmp -name '*.tmp' -mtime +7 -delete", `del /q /s %TEMP%\*.tmp`),
			IntervalSeconds: 3600,
		},
		{
			Name:            "Backup Documents",
			Description:     "Create backup archive",
			Command:         pick("tar -czf ~/backups/docs-$(date +%Y%m%d).tar.gz ~/Documents", "echo Backup complete"),
			IntervalSeconds: 86400,
		},
		{
			Name:            "Check Disk Space",
			Description:     "Monitor disk usage",
			Command:         pick("df -h", "wmic logicaldisk get size,freespace"),
			IntervalSeconds: 300,
		},
		{
			Name:            "Health Ping",
			Description:     "Test network connectivity",
			Command:         pick("ping -c 4 8.8.8.8", "ping -n 4 8.8.8.8"),
			IntervalSeconds: 60,
		},
	}
}
