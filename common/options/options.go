// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package options implements the command-line options shared by the source
// and destination endpoints of a teleport.
package options

import (
	"encoding/pem"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/vadyalex/mongoportal/common/failpoint"
	"github.com/vadyalex/mongoportal/common/log"
	"github.com/vadyalex/mongoportal/common/password"
	"github.com/vadyalex/mongoportal/common/util"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"gopkg.in/yaml.v2"
)

const IncompatibleArgsErrorFormat = "illegal argument combination: cannot specify %s and --uri"

const unknownOptionsWarningFormat = "WARNING: ignoring unsupported URI parameter '%v'"

func ConflictingArgsErrorFormat(optionName, uriValue, cliValue, cliOptionName string) error {
	return fmt.Errorf("Invalid Options: Cannot specify different %s in connection URI and command-line option (\"%s\" was specified in the URI and \"%s\" was specified in the %s option)", optionName, uriValue, cliValue, cliOptionName)
}

const deprecationWarningSSLAllow = "WARNING: --sslAllowInvalidCertificates and --sslAllowInvalidHostnames are deprecated, please use --tlsInsecure instead"

// Struct encompassing all of the options that are reused across endpoints:
// "help", "version", verbosity settings, ssl settings, etc.
type ToolOptions struct {

	// The name of the tool
	AppName string

	// The version of the tool
	VersionStr string

	// The git commit reference of the tool
	GitCommit string

	// Sub-option types
	*URI
	*General
	*Verbosity
	*Connection
	*SSL
	*Auth
	*Namespace

	// Destination is kept as a named field since its flags mirror the
	// source ones.
	Destination *Destination

	// Force direct connection to the server and disable the
	// drivers automatic repl set discovery logic.
	Direct bool

	// ReplicaSetName, if specified, will prevent the obtained session from
	// communicating with any server which is not part of a replica set
	// with the given name.
	ReplicaSetName string

	// RetryWrites, if specified, sets the client default.
	RetryWrites *bool

	// for caching the parser
	parser *flags.Parser

	// for checking which options were enabled on this tool
	enabledOptions EnabledOptions

	// Will attempt to parse positional arguments as connection strings if true
	parsePositionalArgsAsURI bool
}

// Namespace names a collection on one endpoint.
type Namespace struct {
	DB         string `short:"d" long:"db" value-name:"<database-name>" description:"database where the data is located"`
	Collection string `short:"c" long:"collection" value-name:"<collection-name>" description:"collection where the data is located"`
}

func (ns Namespace) String() string {
	return ns.DB + "." + ns.Collection
}

// Destination holds where the data is teleported to. Every field is optional
// and falls back to its source counterpart.
type Destination struct {
	Host             string `long:"toHost" value-name:"<hostname>" description:"mongodb host to teleport data to (setname/host1,host2 for replica sets); defaults to the source host"`
	Port             string `long:"toPort" value-name:"<port>" description:"destination server port (can also use --toHost hostname:port)"`
	ConnectionString string `long:"toUri" value-name:"mongodb-uri" description:"mongodb uri connection string of the destination"`
	DB               string `long:"toDb" value-name:"<database-name>" description:"database to teleport data to; defaults to --db"`
	Collection       string `long:"toCollection" value-name:"<collection-name>" description:"collection to teleport data to; defaults to --collection"`
}

// HasEndpoint reports whether a destination deployment distinct from the
// source was requested.
func (d *Destination) HasEndpoint() bool {
	return d.Host != "" || d.Port != "" || d.ConnectionString != ""
}

// Struct holding generic options
type General struct {
	Help       bool   `long:"help" description:"print usage"`
	Version    bool   `long:"version" description:"print the tool version and exit"`
	ConfigPath string `long:"config" description:"path to a configuration file"`

	MaxProcs   int    `long:"numThreads" hidden:"true"`
	Failpoints string `long:"failpoints" hidden:"true"`
}

// Struct holding verbosity-related options
type Verbosity struct {
	SetVerbosity    func(string) `short:"v" long:"verbose" value-name:"<level>" description:"more detailed log output (include multiple times for more verbosity, e.g. -vvvvv, or specify a numeric value, e.g. --verbose=N)" optional:"true" optional-value:""`
	Quiet           bool         `long:"quiet" description:"hide all log output and the progress bar"`
	VLevel          int          `no-flag:"true"`
	VerbosityParsed bool         `no-flag:"true"`
}

func (v Verbosity) Level() int {
	return v.VLevel
}

func (v Verbosity) IsQuiet() bool {
	return v.Quiet
}

type URI struct {
	ConnectionString string `long:"uri" value-name:"mongodb-uri" description:"mongodb uri connection string of the source"`

	ConnString connstring.ConnString
}

// Struct holding connection-related options
type Connection struct {
	Host string `short:"h" long:"host" value-name:"<hostname>" description:"mongodb host where the data is located (setname/host1,host2 for replica sets)"`
	Port string `long:"port" value-name:"<port>" description:"server port (can also use --host hostname:port)"`

	Timeout                int    `long:"dialTimeout" default:"3" hidden:"true" description:"dial timeout in seconds"`
	SocketTimeout          int    `long:"socketTimeout" default:"0" hidden:"true" description:"socket timeout in seconds (0 for no timeout)"`
	ServerSelectionTimeout int    `long:"serverSelectionTimeout" hidden:"true" description:"seconds to wait for server selection; 0 means driver default"`
	Compressors            string `long:"compressors" default:"none" hidden:"true" value-name:"<snappy,...>" description:"comma-separated list of compressors to enable. Use 'none' to disable."`
}

// Struct holding ssl-related options
type SSL struct {
	UseSSL              bool   `long:"ssl" description:"connect to a mongod or mongos that has ssl enabled"`
	SSLCAFile           string `long:"sslCAFile" value-name:"<filename>" description:"the .pem file containing the root certificate chain from the certificate authority"`
	SSLPEMKeyFile       string `long:"sslPEMKeyFile" value-name:"<filename>" description:"the .pem file containing the certificate and key"`
	SSLPEMKeyPassword   string `long:"sslPEMKeyPassword" value-name:"<password>" description:"the password to decrypt the sslPEMKeyFile, if necessary"`
	SSLAllowInvalidCert bool   `long:"sslAllowInvalidCertificates" hidden:"true" description:"bypass the validation for server certificates"`
	SSLAllowInvalidHost bool   `long:"sslAllowInvalidHostnames" hidden:"true" description:"bypass the validation for server name"`
	TLSInsecure         bool   `long:"tlsInsecure" description:"bypass the validation for server's certificate chain and host name"`
}

// Struct holding auth-related options
type Auth struct {
	Username  string `short:"u" value-name:"<username>" long:"username" description:"username for authentication"`
	Password  string `short:"p" value-name:"<password>" long:"password" description:"password for authentication"`
	Source    string `long:"authenticationDatabase" value-name:"<database-name>" description:"database that holds the user's credentials"`
	Mechanism string `long:"authenticationMechanism" value-name:"<mechanism>" description:"authentication mechanism to use"`
}

type EnabledOptions struct {
	Auth        bool
	Connection  bool
	Namespace   bool
	URI         bool
	Destination bool
}

func parseVal(val string) int {
	idx := strings.Index(val, "=")
	ret, err := strconv.Atoi(val[idx+1:])
	if err != nil {
		panic(fmt.Errorf("value was not a valid integer: %v", err))
	}
	return ret
}

// Ask for a new instance of tool options
func New(appName, versionStr, gitCommit, usageStr string, parsePositionalArgsAsURI bool, enabled EnabledOptions) *ToolOptions {
	opts := &ToolOptions{
		AppName:    appName,
		VersionStr: versionStr,
		GitCommit:  gitCommit,

		General:     &General{},
		Verbosity:   &Verbosity{},
		Connection:  &Connection{},
		URI:         &URI{},
		SSL:         &SSL{},
		Auth:        &Auth{},
		Namespace:   &Namespace{},
		Destination: &Destination{},
		parser: flags.NewNamedParser(
			fmt.Sprintf("%v %v", appName, usageStr), flags.None),
		enabledOptions:           enabled,
		parsePositionalArgsAsURI: parsePositionalArgsAsURI,
	}

	// Called when -v or --verbose is parsed
	opts.SetVerbosity = func(val string) {
		// Reset verbosity level when we call ParseArgs again and see the verbosity flag
		if opts.VLevel != 0 && opts.VerbosityParsed {
			opts.VerbosityParsed = false
			opts.VLevel = 0
		}

		if i, err := strconv.Atoi(val); err == nil {
			opts.VLevel = opts.VLevel + i // -v=N or --verbose=N
		} else if matched, _ := regexp.MatchString(`^v+$`, val); matched {
			opts.VLevel = opts.VLevel + len(val) + 1 // Handles the -vvv cases
		} else if matched, _ := regexp.MatchString(`^v+=[0-9]$`, val); matched {
			opts.VLevel = parseVal(val) // I.e. -vv=3
		} else if val == "" {
			opts.VLevel = opts.VLevel + 1 // Increment for every occurrence of flag
		} else {
			log.Logvf(log.Always, "Invalid verbosity value given")
			os.Exit(util.ExitBadOptions)
		}
	}

	opts.parser.UnknownOptionHandler = opts.handleUnknownOption

	if _, err := opts.parser.AddGroup("general options", "", opts.General); err != nil {
		panic(fmt.Errorf("couldn't register general options: %v", err))
	}
	if _, err := opts.parser.AddGroup("verbosity options", "", opts.Verbosity); err != nil {
		panic(fmt.Errorf("couldn't register verbosity options: %v", err))
	}

	// this call hides failpoints if compiled without failpoint support
	EnableFailpoints(opts)

	if enabled.Connection {
		if _, err := opts.parser.AddGroup("connection options", "", opts.Connection); err != nil {
			panic(fmt.Errorf("couldn't register connection options: %v", err))
		}
		if _, err := opts.parser.AddGroup("ssl options", "", opts.SSL); err != nil {
			panic(fmt.Errorf("couldn't register SSL options: %v", err))
		}
	}

	if enabled.Auth {
		if _, err := opts.parser.AddGroup("authentication options", "", opts.Auth); err != nil {
			panic(fmt.Errorf("couldn't register auth options"))
		}
	}
	if enabled.Namespace {
		if _, err := opts.parser.AddGroup("namespace options", "", opts.Namespace); err != nil {
			panic(fmt.Errorf("couldn't register namespace options"))
		}
	}
	if enabled.Destination {
		if _, err := opts.parser.AddGroup("destination options", "", opts.Destination); err != nil {
			panic(fmt.Errorf("couldn't register destination options"))
		}
	}
	if enabled.URI {
		if _, err := opts.parser.AddGroup("uri options", "", opts.URI); err != nil {
			panic(fmt.Errorf("couldn't register URI options"))
		}
	}
	if opts.MaxProcs <= 0 {
		opts.MaxProcs = runtime.NumCPU()
	}
	log.Logvf(log.Info, "Setting num cpus to %v", opts.MaxProcs)
	runtime.GOMAXPROCS(opts.MaxProcs)
	return opts
}

// FindOptionByLongName finds an option in any of the added option groups by
// matching its long name; useful for modifying the attributes (e.g. description
// or name) of an option
func (opts *ToolOptions) FindOptionByLongName(name string) *flags.Option {
	return opts.parser.FindOptionByLongName(name)
}

// Print the usage message for the tool to stdout.  Returns whether or not the
// help flag is specified.
func (opts *ToolOptions) PrintHelp(force bool) bool {
	if opts.Help || force {
		opts.parser.WriteHelp(os.Stdout)
	}
	return opts.Help
}

// Print the tool version to stdout.  Returns whether or not the version flag
// is specified.
func (opts *ToolOptions) PrintVersion() bool {
	if opts.Version {
		fmt.Printf("%v version: %v\n", opts.AppName, opts.VersionStr)
		fmt.Printf("git version: %v\n", opts.GitCommit)
		fmt.Printf("Go version: %v\n", runtime.Version())
		fmt.Printf("   os: %v\n", runtime.GOOS)
		fmt.Printf("   arch: %v\n", runtime.GOARCH)
		fmt.Printf("   compiler: %v\n", runtime.Compiler)
	}
	return opts.Version
}

// Interface for extra options that need to be used by specific tools
type ExtraOptions interface {
	// Name specifying what type of options these are
	Name() string
}

func (auth *Auth) RequiresExternalDB() bool {
	return auth.Mechanism == "GSSAPI" || auth.Mechanism == "PLAIN" || auth.Mechanism == "MONGODB-X509"
}

func (auth *Auth) IsSet() bool {
	return *auth != Auth{}
}

// ShouldAskForPassword returns true if the user specifies a username flag
// but no password, and the authentication mechanism requires a password.
func (auth *Auth) ShouldAskForPassword() bool {
	return auth.Username != "" && auth.Password == "" &&
		!(auth.Mechanism == "MONGODB-X509" || auth.Mechanism == "GSSAPI")
}

// ShouldAskForPassword returns true if the user specifies a ssl pem key file
// flag but no password for that file, and the key file has any encrypted
// blocks.
func (ssl *SSL) ShouldAskForPassword() (bool, error) {
	if ssl.SSLPEMKeyFile == "" || ssl.SSLPEMKeyPassword != "" {
		return false, nil
	}
	return ssl.pemKeyFileHasEncryptedKey()
}

func (ssl *SSL) pemKeyFileHasEncryptedKey() (bool, error) {
	b, err := os.ReadFile(ssl.SSLPEMKeyFile)
	if err != nil {
		return false, err
	}

	for {
		var v *pem.Block
		v, b = pem.Decode(b)
		if v == nil {
			break
		}
		if v.Type == "ENCRYPTED PRIVATE KEY" {
			return true, nil
		}
	}

	return false, nil
}

func NewURI(unparsed string) (*URI, error) {
	cs, err := connstring.Parse(unparsed)
	if err != nil {
		return nil, fmt.Errorf("error parsing URI from %v: %v", unparsed, err)
	}
	return &URI{ConnectionString: cs.String(), ConnString: *cs}, nil
}

func (uri *URI) GetConnectionAddrs() []string {
	return uri.ConnString.Hosts
}

func (uri *URI) ParsedConnString() *connstring.ConnString {
	if uri.ConnectionString == "" {
		return nil
	}
	return &uri.ConnString
}

func (opts *ToolOptions) EnabledToolOptions() EnabledOptions {
	return opts.enabledOptions
}

// LogUnsupportedOptions logs warnings regarding unknown/unsupported URI parameters.
// The unknown options are determined by the driver.
func (uri *URI) LogUnsupportedOptions() {
	for key := range uri.ConnString.UnknownOptions {
		log.Logvf(log.Always, unknownOptionsWarningFormat, key)
	}
}

// Get the authentication database to use. Should be the value of
// --authenticationDatabase if it's provided, otherwise, the database that's
// specified in the tool's --db arg.
func (opts *ToolOptions) GetAuthenticationDatabase() string {
	if opts.Auth.Source != "" {
		return opts.Auth.Source
	} else if opts.Auth.RequiresExternalDB() {
		return "$external"
	} else if opts.Namespace != nil && opts.Namespace.DB != "" {
		return opts.Namespace.DB
	}
	return ""
}

// AddOptions registers an additional options group to this instance
func (opts *ToolOptions) AddOptions(extraOpts ExtraOptions) {
	_, err := opts.parser.AddGroup(extraOpts.Name()+" options", "", extraOpts)
	if err != nil {
		panic(fmt.Sprintf("error setting command line options for  %v: %v",
			extraOpts.Name(), err))
	}
}

func (opts *ToolOptions) CallArgParser(args []string) ([]string, error) {
	args, err := opts.parser.ParseArgs(args)
	if err != nil {
		return []string{}, err
	}

	// Set VerbosityParsed flag to make sure we reset verbosity level when we call ParseArgs again
	if opts.VLevel != 0 && !opts.VerbosityParsed {
		opts.VerbosityParsed = true
	}

	return args, nil
}

// ParseArgs parses a potential config file followed by the command line args, overriding
// any values in the config file. Returns any extra args not accounted for by parsing,
// as well as an error if the parsing returns an error.
func (opts *ToolOptions) ParseArgs(args []string) ([]string, error) {
	LogSensitiveOptionWarnings(args)

	if err := opts.ParseConfigFile(args); err != nil {
		return []string{}, err
	}

	args, err := opts.CallArgParser(args)
	if err != nil {
		return []string{}, err
	}

	if opts.SSLAllowInvalidCert || opts.SSLAllowInvalidHost {
		log.Logvf(log.Always, deprecationWarningSSLAllow)
	}

	if opts.parsePositionalArgsAsURI {
		args, err = opts.setURIFromPositionalArg(args)
		if err != nil {
			return []string{}, err
		}
	}

	failpoint.ParseFailpoints(opts.Failpoints)

	err = opts.NormalizeOptionsAndURI()
	if err != nil {
		return []string{}, err
	}

	return args, err
}

// LogSensitiveOptionWarnings logs a warning for any sensitive information (i.e. passwords)
// that appear on the command line for the --password, --uri, --toUri and
// --sslPEMKeyPassword options. This also applies to a connection string that
// appears as a positional argument.
func LogSensitiveOptionWarnings(args []string) {
	passwordMsg := "WARNING: On some systems, a password provided directly using " +
		"--password may be visible to system status programs such as `ps` that may be " +
		"invoked by other users. Consider omitting the password to provide it via stdin, " +
		"or using the --config option to specify a configuration file with the password."

	uriMsg := "WARNING: On some systems, a password provided directly in a connection string " +
		"or using --uri or --toUri may be visible to system status programs such as `ps` that may be " +
		"invoked by other users. Consider omitting the password to provide it via stdin, " +
		"or using the --config option to specify a configuration file with the password."

	sslMsg := "WARNING: On some systems, a password provided directly using --sslPEMKeyPassword " +
		"may be visible to system status programs such as `ps` that may be invoked by other users. " +
		"Consider using the --config option to specify a configuration file with the password."

	// Create temporary options for parsing command line args.
	tempOpts := New("", "", "", "", true, EnabledOptions{Auth: true, Connection: true, URI: true, Destination: true})
	tempOpts.parser.Options |= flags.IgnoreUnknown
	extraArgs, err := tempOpts.CallArgParser(args)
	if err != nil {
		return
	}

	// Parse the extraArgs for a positional connection string.
	_, err = tempOpts.setURIFromPositionalArg(extraArgs)
	if err != nil {
		return
	}

	// Log a message for --password, if specified.
	if tempOpts.Auth.Password != "" {
		log.Logvf(log.Always, passwordMsg)
	}

	// Log a message for --uri, --toUri or a positional connection string, if any is specified.
	for _, uri := range []string{tempOpts.URI.ConnectionString, tempOpts.Destination.ConnectionString} {
		if uri == "" {
			continue
		}
		if cs, err := connstring.Parse(uri); err == nil && cs.Password != "" {
			log.Logvf(log.Always, uriMsg)
			break
		}
	}

	// Log a message for --sslPEMKeyPassword, if specified.
	if tempOpts.SSL.SSLPEMKeyPassword != "" {
		log.Logvf(log.Always, sslMsg)
	}
}

// ParseConfigFile iterates over args to find a --config option. If not found, we return.
// If found, we read the contents of the specified config file in YAML format. We parse
// any values corresponding to --password, --uri, --toUri and --sslPEMKeyPassword,
// and store them in the opts.
func (opts *ToolOptions) ParseConfigFile(args []string) error {
	// Get config file path from the arguments, if specified.
	_, err := opts.CallArgParser(args)
	if err != nil {
		return err
	}

	// No --config option was specified.
	if opts.General.ConfigPath == "" {
		return nil
	}

	// --config option specifies a file path.
	configBytes, err := os.ReadFile(opts.General.ConfigPath)
	if err != nil {
		return errors.Wrapf(err, "error opening file with --config")
	}

	// Unmarshal the config file as a top-level YAML file.
	var config struct {
		Password                    string `yaml:"password"`
		ConnectionString            string `yaml:"uri"`
		DestinationConnectionString string `yaml:"toUri"`
		SSLPEMKeyPassword           string `yaml:"sslPEMKeyPassword"`
	}
	err = yaml.UnmarshalStrict(configBytes, &config)
	if err != nil {
		return errors.Wrapf(err, "error parsing config file %s", opts.General.ConfigPath)
	}

	// Assign each parsed value to its respective ToolOptions field.
	opts.Auth.Password = config.Password
	opts.URI.ConnectionString = config.ConnectionString
	opts.Destination.ConnectionString = config.DestinationConnectionString
	opts.SSL.SSLPEMKeyPassword = config.SSLPEMKeyPassword

	return nil
}

func (opts *ToolOptions) setURIFromPositionalArg(args []string) ([]string, error) {
	newArgs := []string{}
	var parsedURI *connstring.ConnString

	for _, arg := range args {
		if arg == "" {
			continue
		}
		cs, err := connstring.Parse(arg)
		if err == nil {
			if parsedURI != nil {
				return []string{}, fmt.Errorf("too many URIs found in positional arguments: only one URI can be set as a positional argument")
			}
			parsedURI = cs
		} else if err.Error() == "error parsing uri: scheme must be \"mongodb\" or \"mongodb+srv\"" {
			newArgs = append(newArgs, arg)
		} else {
			return []string{}, err
		}
	}

	if parsedURI != nil {
		if opts.ConnectionString != "" {
			return []string{}, fmt.Errorf(IncompatibleArgsErrorFormat, "a URI in a positional argument")
		}
		opts.ConnectionString = parsedURI.Original
	}

	return newArgs, nil
}

// NormalizeOptionsAndURI syncs the connection string and toolOptions objects.
// It returns an error if there is any conflict between options and the connection string.
// If a value is set on the options, but not the connection string, that value is added to the
// connection string. If a value is set on the connection string, but not the options,
// that value is added to the options.
func (opts *ToolOptions) NormalizeOptionsAndURI() error {
	if opts.URI == nil || opts.URI.ConnectionString == "" {
		// If URI not provided, get replica set name and generate connection string
		_, opts.ReplicaSetName = util.SplitHostArg(opts.Host)
		uri, err := NewURI(util.BuildURI(opts.Host, opts.Port))
		if err != nil {
			return err
		}
		opts.URI = uri
	}

	cs, err := connstring.Parse(opts.URI.ConnectionString)
	if err != nil {
		return err
	}
	if err := opts.setOptionsFromURI(*cs); err != nil {
		return err
	}

	// finalize auth options, filling in missing passwords
	if opts.Auth.ShouldAskForPassword() {
		pass, err := password.Prompt("mongo user")
		if err != nil {
			return fmt.Errorf("error reading password: %v", err)
		}
		opts.Auth.Password = pass
		opts.ConnString.Password = pass
		opts.ConnString.PasswordSet = true
	}

	shouldAskForSSLPassword, err := opts.SSL.ShouldAskForPassword()
	if err != nil {
		return fmt.Errorf("error determining whether client cert needs password: %v", err)
	}
	if shouldAskForSSLPassword {
		pass, err := password.Prompt("client certificate")
		if err != nil {
			return fmt.Errorf("error reading password: %v", err)
		}
		opts.SSL.SSLPEMKeyPassword = pass
	}

	err = opts.ConnString.Validate()
	if err != nil {
		return errors.Wrap(err, "connection string failed validation")
	}

	// without a replica set name a single host is dialed directly
	if !opts.ConnString.LoadBalanced {
		opts.Direct = opts.Direct || opts.ReplicaSetName == ""
	}

	return nil
}

// DestinationOptions returns the options used to reach the destination
// deployment, or nil when no destination endpoint was given and the source
// connection should be reused. The ssl options apply to both endpoints; the
// source credentials are reused unless --toUri is set, in which case only
// the credentials embedded in it are used.
func (opts *ToolOptions) DestinationOptions() (*ToolOptions, error) {
	if opts.Destination == nil || !opts.Destination.HasEndpoint() {
		return nil, nil
	}
	if opts.Destination.ConnectionString != "" && (opts.Destination.Host != "" || opts.Destination.Port != "") {
		return nil, fmt.Errorf("illegal argument combination: cannot specify --toHost or --toPort and --toUri")
	}

	ssl := *opts.SSL
	dest := &ToolOptions{
		AppName:    opts.AppName,
		VersionStr: opts.VersionStr,
		GitCommit:  opts.GitCommit,
		General:    opts.General,
		Verbosity:  opts.Verbosity,
		Connection: &Connection{
			Host:                   opts.Destination.Host,
			Port:                   opts.Destination.Port,
			Timeout:                opts.Connection.Timeout,
			SocketTimeout:          opts.Connection.SocketTimeout,
			ServerSelectionTimeout: opts.Connection.ServerSelectionTimeout,
			Compressors:            opts.Connection.Compressors,
		},
		SSL:            &ssl,
		Auth:           &Auth{},
		Namespace:      &Namespace{DB: opts.Destination.DB, Collection: opts.Destination.Collection},
		Destination:    &Destination{},
		URI:            &URI{},
		enabledOptions: opts.enabledOptions,
	}

	if opts.Destination.ConnectionString != "" {
		uri, err := NewURI(opts.Destination.ConnectionString)
		if err != nil {
			return nil, errors.Wrap(err, "invalid --toUri")
		}
		dest.URI = uri
		// tls settings of the destination come from its own uri
		if uri.ConnString.SSLSet {
			dest.SSL = &SSL{}
		}
	} else if opts.Auth.IsSet() {
		dest.Auth = &Auth{
			Username:  opts.Auth.Username,
			Password:  opts.Auth.Password,
			Source:    opts.GetAuthenticationDatabase(),
			Mechanism: opts.Auth.Mechanism,
		}
	}

	if err := dest.NormalizeOptionsAndURI(); err != nil {
		return nil, errors.Wrap(err, "error parsing destination options")
	}
	return dest, nil
}

func (opts *ToolOptions) handleUnknownOption(option string, arg flags.SplitArgument, args []string) ([]string, error) {
	if option == "dbpath" || option == "directoryperdb" || option == "journal" {
		return args, fmt.Errorf("--dbpath and related flags are not supported.\n" +
			"Connect to a running mongod or mongos instead")
	}

	return args, fmt.Errorf(`unknown option "%v"`, option)
}

// uriString pairs a string command-line option with its connection string
// counterpart. A nil set means the URI side counts as set when non-empty.
type uriString struct {
	name, flag string
	cli, uri   *string
	set        *bool
	secret     bool
}

// reconcile fails when both sides are set and differ, and otherwise copies
// whichever side is set onto the other.
func (o uriString) reconcile() error {
	uriSet := *o.uri != ""
	if o.set != nil {
		uriSet = *o.set
	}
	switch {
	case *o.cli != "" && uriSet:
		if *o.cli == *o.uri {
			return nil
		}
		if o.secret {
			return fmt.Errorf("Invalid Options: Cannot specify different %s in connection URI and command-line option", o.name)
		}
		return ConflictingArgsErrorFormat(o.name, *o.uri, *o.cli, o.flag)
	case *o.cli != "":
		*o.uri = *o.cli
		if o.set != nil {
			*o.set = true
		}
	case uriSet:
		*o.cli = *o.uri
	}
	return nil
}

// reconcileMillis is reconcile for timeouts given in milliseconds on the
// command line, where unset is the flag default.
func reconcileMillis(name, flag string, cli *int, unset int, uri *time.Duration, uriSet *bool) error {
	fromCLI := time.Duration(*cli) * time.Millisecond
	switch {
	case *cli != unset && *uriSet:
		if fromCLI != *uri {
			return ConflictingArgsErrorFormat(name, strconv.Itoa(int(*uri/time.Millisecond)), strconv.Itoa(*cli), flag)
		}
	case *cli != unset:
		*uri, *uriSet = fromCLI, true
	case *uriSet:
		*cli = int(*uri / time.Millisecond)
	}
	return nil
}

// setOptionsFromURI merges cs with the command-line options and stores the
// result in opts.ConnString. Combinations the driver rejects on its own, such
// as loadBalanced with several hosts, are left to ConnString.Validate.
func (opts *ToolOptions) setOptionsFromURI(cs connstring.ConnString) error {
	opts.URI.ConnString = cs

	if opts.enabledOptions.Connection {
		if err := opts.setConnectionOptionsFromURI(&cs); err != nil {
			return err
		}
	}

	var pairs []uriString
	if opts.enabledOptions.Auth {
		pairs = append(pairs,
			uriString{name: "username", flag: "--username", cli: &opts.Username, uri: &cs.Username},
			uriString{name: "password", cli: &opts.Password, uri: &cs.Password, set: &cs.PasswordSet, secret: true},
			uriString{name: "authSource", flag: "--authenticationDatabase", cli: &opts.Source, uri: &cs.AuthSource, set: &cs.AuthSourceSet},
			uriString{name: "authMechanism", flag: "--authenticationMechanism", cli: &opts.Mechanism, uri: &cs.AuthMechanism},
		)
	}
	if opts.enabledOptions.Namespace {
		pairs = append(pairs, uriString{name: "database", flag: "--db", cli: &opts.DB, uri: &cs.Database})
	}
	pairs = append(pairs,
		uriString{name: "replica set name", flag: "--host", cli: &opts.ReplicaSetName, uri: &cs.ReplicaSet},
		uriString{name: "sslCAFile", flag: "--sslCAFile", cli: &opts.SSLCAFile, uri: &cs.SSLCaFile, set: &cs.SSLCaFileSet},
		uriString{name: "sslClientCertificateKeyFile", flag: "--sslPEMKeyFile", cli: &opts.SSLPEMKeyFile,
			uri: &cs.SSLClientCertificateKeyFile, set: &cs.SSLClientCertificateKeyFileSet},
	)
	for _, pair := range pairs {
		if err := pair.reconcile(); err != nil {
			return err
		}
	}

	opts.Direct = cs.DirectConnection || cs.Connect == connstring.SingleConnect
	if cs.RetryWritesSet {
		opts.RetryWrites = &cs.RetryWrites
	}

	if err := opts.setSSLOptionsFromURI(&cs); err != nil {
		return err
	}

	opts.ConnString = cs
	return nil
}

func (opts *ToolOptions) setConnectionOptionsFromURI(cs *connstring.ConnString) error {
	// every host in the uri must agree with --port, hosts without one take it
	if opts.Port != "" {
		for i, host := range cs.Hosts {
			_, port, found := strings.Cut(host, ":")
			if !found {
				cs.Hosts[i] = host + ":" + opts.Port
			} else if port != opts.Port {
				return ConflictingArgsErrorFormat("port", strings.Join(cs.Hosts, ","), opts.Port, "--port")
			}
		}
	}

	if opts.Host != "" {
		seedlist, replicaSetName := util.SplitHostArg(opts.Host)
		opts.ReplicaSetName = replicaSetName
		if opts.Port != "" {
			for i, host := range seedlist {
				if !strings.Contains(host, ":") {
					seedlist[i] = host + ":" + opts.Port
				}
			}
		}
		// seedlist order is irrelevant
		if !mapset.NewSet(seedlist...).Equal(mapset.NewSet(cs.Hosts...)) {
			return ConflictingArgsErrorFormat("host", strings.Join(cs.Hosts, ","), opts.Host, "--host")
		}
	} else if len(cs.Hosts) > 0 {
		names := make([]string, len(cs.Hosts))
		for i, host := range cs.Hosts {
			name, port, found := strings.Cut(host, ":")
			names[i] = name
			if found && opts.Port == "" {
				opts.Port = port
			}
		}
		opts.Host = strings.Join(names, ",")
		if cs.ReplicaSet != "" {
			opts.Host = cs.ReplicaSet + "/" + opts.Host
		}
	}

	conn := opts.Connection
	if err := reconcileMillis("serverSelectionTimeout", "--serverSelectionTimeout",
		&conn.ServerSelectionTimeout, 0, &cs.ServerSelectionTimeout, &cs.ServerSelectionTimeoutSet); err != nil {
		return err
	}
	if err := reconcileMillis("connectTimeout", "--dialTimeout",
		&conn.Timeout, 3, &cs.ConnectTimeout, &cs.ConnectTimeoutSet); err != nil {
		return err
	}
	if err := reconcileMillis("SocketTimeout", "--socketTimeout",
		&conn.SocketTimeout, 0, &cs.SocketTimeout, &cs.SocketTimeoutSet); err != nil {
		return err
	}

	if len(cs.Compressors) != 0 {
		fromURI := strings.Join(cs.Compressors, ",")
		if conn.Compressors != "none" && conn.Compressors != fromURI {
			return ConflictingArgsErrorFormat("compressors", fromURI, conn.Compressors, "--compressors")
		}
	} else if conn.Compressors != "" {
		cs.Compressors = strings.Split(conn.Compressors, ",")
	}
	return nil
}

// setSSLOptionsFromURI merges the tls switches and the key password, the
// options that do not fit uriString.
func (opts *ToolOptions) setSSLOptionsFromURI(cs *connstring.ConnString) error {
	// an unset --ssl is indistinguishable from false, so only true can conflict
	switch {
	case opts.UseSSL && cs.SSLSet && !cs.SSL:
		return ConflictingArgsErrorFormat("ssl or tls", "false", "true", "--ssl")
	case opts.UseSSL:
		cs.SSL, cs.SSLSet = true, true
	case cs.SSLSet:
		opts.UseSSL = cs.SSL
	}

	switch {
	case opts.SSLPEMKeyPassword != "" && cs.SSLClientCertificateKeyPasswordSet:
		if fromURI := cs.SSLClientCertificateKeyPassword(); fromURI != opts.SSLPEMKeyPassword {
			return ConflictingArgsErrorFormat("sslPEMKeyFilePassword", fromURI, opts.SSLPEMKeyPassword, "--sslPEMKeyPassword")
		}
	case opts.SSLPEMKeyPassword != "":
		keyPassword := opts.SSLPEMKeyPassword
		cs.SSLClientCertificateKeyPassword = func() string { return keyPassword }
		cs.SSLClientCertificateKeyPasswordSet = true
	case cs.SSLClientCertificateKeyPasswordSet:
		opts.SSLPEMKeyPassword = cs.SSLClientCertificateKeyPassword()
	}

	insecure := opts.SSLAllowInvalidCert || opts.SSLAllowInvalidHost || opts.TLSInsecure
	switch {
	case insecure && cs.SSLInsecureSet && !cs.SSLInsecure:
		return ConflictingArgsErrorFormat("sslInsecure or tlsInsecure", "false", "true", "--tlsInsecure")
	case insecure:
		cs.SSLInsecure, cs.SSLInsecureSet = true, true
	case cs.SSLInsecureSet:
		opts.SSLAllowInvalidCert = cs.SSLInsecure
		opts.SSLAllowInvalidHost = cs.SSLInsecure
		opts.TLSInsecure = cs.SSLInsecure
	}
	return nil
}
