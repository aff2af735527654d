package config

import "strings"

// AppVersion is the version of the application, injected at build time.
var AppVersion = "0.3.1"

// AppName is the name of the application.
const AppName = "DNGScope"

// LogWinSubDir is the sub directory for the log files on windows.
var LogWinSubDir = AppName

// LogSubDir is the sub directory for the log files.
var LogSubDir = "." + strings.ToLower(AppName)

// LogExt is the extension for the log files.
var LogExt = ".log"

// APIAddr is the listen address of the local automation server.
const APIAddr = "127.0.0.1:49517"
