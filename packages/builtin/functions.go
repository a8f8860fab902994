package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/hitwire/packages/logger"
)

type Func func(args []string) any

// Registry maps names to template functions. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
	seq   atomic.Int64
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = funcNow
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["uuid"] = funcUUID
	r.funcs["nextId"] = r.funcNextID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["base64"] = funcBase64
	r.funcs["base64Decode"] = funcBase64Decode
	r.funcs["md5"] = funcMD5
	r.funcs["sha256"] = funcSHA256
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["urlDecode"] = funcURLDecode
	r.funcs["date"] = funcDate
	r.funcs["env"] = funcEnv
	r.funcs["upper"] = funcUpper
	r.funcs["lower"] = funcLower
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Names lists the registered functions, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates an expression such as `random(1, 6)`. It reports false
// when expr is not a call of a registered function.
func (r *Registry) Call(expr string) (any, bool) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, false
	}

	r.mu.RLock()
	fn, ok := r.funcs[matches[1]]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}
	return fn(args), true
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

func intArg(fn string, args []string, i, fallback int) int {
	if len(args) <= i {
		return fallback
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		logger.Warn("builtin_bad_argument", "func", fn, "arg", args[i])
		return fallback
	}
	return v
}

func funcNow(_ []string) any {
	return time.Now().UTC().Format(time.RFC3339)
}

func funcTimestamp(_ []string) any {
	return time.Now().Unix()
}

func funcTimestampMs(_ []string) any {
	return time.Now().UnixMilli()
}

func funcUUID(_ []string) any {
	return uuid.New().String()
}

// funcNextID returns "<n>-<unix millis>", n counting per registry.
func (r *Registry) funcNextID(_ []string) any {
	return strconv.FormatInt(r.seq.Add(1), 10) + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func funcRandom(args []string) any {
	lo, hi := 0, 100
	if len(args) >= 2 {
		lo = intArg("random", args, 0, lo)
		hi = intArg("random", args, 1, hi)
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return rand.Intn(hi-lo+1) + lo
}

func funcRandomString(args []string) any {
	return randomString(intArg("randomString", args, 0, 16), "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
}

func funcRandomEmail(_ []string) any {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@%s.com", user, domain)
}

func funcBase64(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0]))
}

func funcBase64Decode(args []string) any {
	if len(args) < 1 {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return ""
	}
	return string(decoded)
}

func funcMD5(args []string) any {
	if len(args) < 1 {
		return ""
	}
	hash := md5.Sum([]byte(args[0]))
	return hex.EncodeToString(hash[:])
}

func funcSHA256(args []string) any {
	if len(args) < 1 {
		return ""
	}
	hash := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(hash[:])
}

func funcURLEncode(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return url.QueryEscape(args[0])
}

func funcURLDecode(args []string) any {
	if len(args) < 1 {
		return ""
	}
	decoded, err := url.QueryUnescape(args[0])
	if err != nil {
		return args[0]
	}
	return decoded
}

func funcDate(args []string) any {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format)
}

// funcEnv returns the variable, or the second argument when it is unset.
func funcEnv(args []string) any {
	if len(args) < 1 {
		return ""
	}
	if v, ok := os.LookupEnv(args[0]); ok {
		return v
	}
	if len(args) >= 2 {
		return args[1]
	}
	return ""
}

func funcUpper(args []string) any {
	return strings.ToUpper(strings.Join(args, ","))
}

func funcLower(args []string) any {
	return strings.ToLower(strings.Join(args, ","))
}

func randomString(length int, charset string) string {
	if length < 0 {
		length = 0
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
