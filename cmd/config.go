package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "vkdforge"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName      = "output"
	parallelFlagName    = "parallel"
	branchFlagName      = "branch"
	refFlagName         = "ref"
	localFlagName       = "local"
	mainFlagName        = "main"
	profileFlagName     = "profile"
	disableFlagName     = "disable"
	variantFlagName     = "variant"
	patchesFlagName     = "patches"
	signatureFlagName   = "signature"
	keyringFlagName     = "keyring"
	verboseFlagName     = "verbose"

	sourcePrimaryKey       = "source.primary"
	sourceMirrorKey        = "source.mirror"
	sourceWorkDirKey       = "source.workdir"
	sourceTagPatternKey    = "source.tag_pattern"
	sourceRefFallbackKey   = "source.ref_fallback"
	sourceDefaultBranchKey = "source.default_branch"

	retryAttemptsKey = "retry.attempts"
	retryDelayKey    = "retry.delay"

	buildScriptKey  = "build.script"
	buildTargetKey  = "build.target"
	buildTimeoutKey = "build.timeout"
	buildOutputKey  = "build.output"

	packageVariantKey    = "package.variant"
	packageSuffixKey     = "package.suffix"
	packageBinaryNameKey = "package.binary_name"
	packageAPIHeaderKey  = "package.api_header"

	gpuProfileKey      = "gpu.profile"
	gpuProfilesFileKey = "gpu.profiles_file"
	patchesDirKey      = "patches.dir"
	featuresDisableKey = "features.disable"

	planParallelKey = "plan.parallel"

	defaultPrimaryURL    = "https://github.com/HansKristian-Work/vkd3d-proton.git"
	defaultWorkDir       = ".vkdforge-work"
	defaultRefFallback   = "fail"
	defaultBranchName    = "master"
	defaultRetryAttempts = 3
	defaultRetryDelay    = 5 * time.Second

	defaultBuildScript  = "meson setup build --cross-file build-win64.txt && ninja -C build"
	defaultBuildTarget  = "x86_64-w64-mingw32"
	defaultBuildTimeout = 30 * time.Minute
	defaultBuildOutput  = "build/src/d3d12.dll"

	defaultVariant    = "vkd3d-proton"
	defaultSuffix     = "caps"
	defaultBinaryName = "d3d12.dll"
	defaultAPIHeader  = "include/vkd3d.h"

	defaultOutputDir    = "dist"
	defaultPatchesDir   = "patches"
	defaultPlanParallel = 1

	envPrefix = "VKDFORGE"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".vkdforge.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)

	viper.SetDefault(sourcePrimaryKey, defaultPrimaryURL)
	viper.SetDefault(sourceMirrorKey, "")
	viper.SetDefault(sourceWorkDirKey, defaultWorkDir)
	viper.SetDefault(sourceTagPatternKey, "")
	viper.SetDefault(sourceRefFallbackKey, defaultRefFallback)
	viper.SetDefault(sourceDefaultBranchKey, defaultBranchName)

	viper.SetDefault(retryAttemptsKey, defaultRetryAttempts)
	viper.SetDefault(retryDelayKey, int64(defaultRetryDelay.Seconds()))

	viper.SetDefault(buildScriptKey, defaultBuildScript)
	viper.SetDefault(buildTargetKey, defaultBuildTarget)
	viper.SetDefault(buildTimeoutKey, int64(defaultBuildTimeout.Minutes()))
	viper.SetDefault(buildOutputKey, defaultBuildOutput)

	viper.SetDefault(packageVariantKey, defaultVariant)
	viper.SetDefault(packageSuffixKey, defaultSuffix)
	viper.SetDefault(packageBinaryNameKey, defaultBinaryName)
	viper.SetDefault(packageAPIHeaderKey, defaultAPIHeader)

	viper.SetDefault(gpuProfileKey, "")
	viper.SetDefault(gpuProfilesFileKey, "")
	viper.SetDefault(patchesDirKey, defaultPatchesDir)
	viper.SetDefault(featuresDisableKey, []string{})

	viper.SetDefault(outputFlagName, defaultOutputDir)
	viper.SetDefault(planParallelKey, defaultPlanParallel)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
