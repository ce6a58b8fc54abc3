package core

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func parse(t *testing.T, src string) *ParsedUnit {
	t.Helper()
	u, err := ParseSource(context.Background(), "test.c", []byte(src))
	if err != nil {
		t.Fatalf("ParseSource() error = %v", err)
	}
	return u
}

func analyze(t *testing.T, src string, tested ...string) *Analysis {
	t.Helper()
	fns := make(map[string]bool)
	for _, f := range tested {
		fns[f] = true
	}
	return Analyze(parse(t, src), Options{
		EntryPoint:      "main",
		TestedFunctions: fns,
		IsStdinReader: func(name string) bool {
			switch name {
			case "fgets", "fgetc", "getc", "scanf":
				return true
			}
			return false
		},
	})
}

func funcID(t *testing.T, an *Analysis, name string) FuncID {
	t.Helper()
	fn, ok := an.Arena.FunctionByName(name)
	if !ok {
		t.Fatalf("function %s not registered", name)
	}
	return fn.ID
}

func globalNames(an *Analysis, u *Usage) []string {
	var out []string
	for _, id := range u.Globals {
		out = append(out, an.Arena.Global(id).Name)
	}
	return out
}

func TestParseFileRejectsNonC(t *testing.T) {
	if _, err := ParseFile(context.Background(), "prog.cpp"); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("ParseFile(prog.cpp) error = %v, want unsupported language", err)
	}
}

func TestCallGraph(t *testing.T) {
	src := `
int helper(int x);

int leaf(int x) { return x + 1; }

int helper(int x) {
  return leaf(x) + leaf(x);
}

int main(int argc, char **argv) {
  int r = helper(1);
  r += helper(2);
  printf("%d", r);
  return 0;
}
`
	an := analyze(t, src)

	helper, ok := an.Arena.FunctionByName("helper")
	if !ok || helper.Def == nil || len(helper.Prototypes) != 1 {
		t.Fatalf("helper = %+v, want definition and one prototype", helper)
	}
	if entry := an.EntryFunction(); entry == nil || entry.Name != "main" {
		t.Fatalf("EntryFunction() = %v", entry)
	}
	printf, ok := an.Arena.FunctionByName("printf")
	if !ok || !printf.IsExternal() {
		t.Errorf("printf should be an external function")
	}

	leaf := funcID(t, an, "leaf")
	main := funcID(t, an, "main")
	if got := an.Graph.Callers[leaf]; !reflect.DeepEqual(got, []FuncID{helper.ID}) {
		t.Errorf("Callers[leaf] = %v, want [helper] once", got)
	}
	if got := an.Graph.Callers[helper.ID]; !reflect.DeepEqual(got, []FuncID{main}) {
		t.Errorf("Callers[helper] = %v, want [main] once", got)
	}

	sites := 0
	for _, cs := range an.Arena.Calls() {
		if cs.CalleeName == "helper" {
			sites++
			if an.Graph.SiteCaller[cs.ID] != main {
				t.Errorf("SiteCaller of %s = %d", an.Unit.Text(cs.Node), an.Graph.SiteCaller[cs.ID])
			}
		}
	}
	if sites != 2 {
		t.Errorf("got %d call sites of helper, want 2", sites)
	}
}

func TestCollectGlobals(t *testing.T) {
	src := `
extern int ext;
int proto(int);
static int count = 0, total;
const char *name = "x";
double grid[4][8];
int table[] = {1, 2, 3};
char *names[3];
int (*handler)(int);
#ifdef EXTRA
long extra;
#endif
int main(int argc, char **argv) { return 0; }
`
	an := analyze(t, src)
	u := an.Unit

	var got []string
	for _, g := range an.Arena.Globals() {
		got = append(got, g.Name)
	}
	want := []string{"count", "total", "name", "grid", "table", "names", "extra"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("globals = %v, want %v", got, want)
	}
	if len(an.GlobalDecls) != 6 {
		t.Errorf("GlobalDecls has %d entries, want 6", len(an.GlobalDecls))
	}

	tests := []struct {
		name      string
		param     string
		local     string
		isArray   bool
		isPointer bool
	}{
		{"count", "int *count", "int count = 0;", false, false},
		{"total", "int *total", "int total;", false, false},
		{"name", "const char *name", "const char *name = \"x\";", false, true},
		{"grid", "private double (*grid)[8]", "private double grid[4][8];", true, false},
		{"table", "private int *table", "private int table[] = {1, 2, 3};", true, false},
		{"names", "private char **names", "private char *names[3];", true, false},
		{"extra", "long *extra", "long extra;", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ok := an.Arena.GlobalByName(tt.name)
			if !ok {
				t.Fatalf("global %s missing", tt.name)
			}
			if got := g.ParamText(); got != tt.param {
				t.Errorf("ParamText() = %q, want %q", got, tt.param)
			}
			if got := g.LocalDecl(); got != tt.local {
				t.Errorf("LocalDecl() = %q, want %q", got, tt.local)
			}
			if g.IsArray != tt.isArray || g.IsPointer != tt.isPointer {
				t.Errorf("IsArray/IsPointer = %v/%v", g.IsArray, g.IsPointer)
			}
		})
	}

	count, _ := an.Arena.GlobalByName("count")
	if !count.IsStatic || u.Text(count.Decl) != "static int count = 0, total;" {
		t.Errorf("count decl = %q static=%v", u.Text(count.Decl), count.IsStatic)
	}
	name, _ := an.Arena.GlobalByName("name")
	if !name.IsConst {
		t.Error("name should be const")
	}
	grid, _ := an.Arena.GlobalByName("grid")
	if !reflect.DeepEqual(grid.Dims, []string{"4", "8"}) {
		t.Errorf("grid dims = %v", grid.Dims)
	}
}

func TestClassifyReferences(t *testing.T) {
	src := `
int g;
int arr[10];

int uses(int x) {
  g = g + x;
  arr[0] = x;
  return g;
}

int param_shadow(int g) {
  return g;
}

int block_shadow(void) {
  int r = g;
  {
    int g = 2;
    r += g;
  }
  for (int g = 0; g < 3; g++) {
    r += g;
  }
  return r;
}

int main(int argc, char **argv) {
  g = 1;
  return uses(2);
}
`
	an := analyze(t, src)

	uses := an.Usage.Direct[funcID(t, an, "uses")]
	if uses == nil || !reflect.DeepEqual(globalNames(an, uses), []string{"g", "arr"}) {
		t.Fatalf("uses globals = %v", uses)
	}
	if _, ok := an.Usage.Direct[funcID(t, an, "param_shadow")]; ok {
		t.Error("param_shadow should not use the global g")
	}
	block := an.Usage.Direct[funcID(t, an, "block_shadow")]
	if block == nil || !reflect.DeepEqual(globalNames(an, block), []string{"g"}) {
		t.Errorf("block_shadow globals = %v", block)
	}
	if _, ok := an.Usage.Direct[funcID(t, an, "main")]; ok {
		t.Error("the entry point must not be classified")
	}

	// g three times in uses, once in block_shadow; arr is an array.
	if len(an.Usage.Derefs) != 4 {
		var texts []string
		for _, n := range an.Usage.Derefs {
			line, col := an.Unit.Position(n)
			texts = append(texts, fmt.Sprintf("%s@%d:%d", an.Unit.Text(n), line, col))
		}
		t.Errorf("Derefs = %v, want 4 entries", texts)
	}
	for _, n := range an.Usage.Derefs {
		if an.Unit.Text(n) != "g" {
			t.Errorf("unexpected deref of %q", an.Unit.Text(n))
		}
	}
}

func TestClassifyPointerWrites(t *testing.T) {
	src := `
int *cur;
int *other;

void step(void) { cur = cur + 1; }
void bump(void) { (cur)--; }
void store(void) { *other = 1; other[1] = 2; }
int read(void) { return *cur + *other; }

int main(int argc, char **argv) {
  cur = other;
  return 0;
}
`
	an := analyze(t, src)
	var got []string
	for _, n := range an.Usage.PointerWrites {
		got = append(got, an.Unit.FunctionName(EnclosingFunction(n))+":"+an.Unit.Text(n))
	}
	want := []string{"step:cur", "bump:cur"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PointerWrites = %v, want %v", got, want)
	}
}

func TestClassifyIORules(t *testing.T) {
	src := `
int add(int a, int b) { return a + b; }

void read_line(char *buf) {
  fgets(buf, 10, stdin);
}

void read_num(int *n) {
  scanf("%d", n);
}

void compute(void) {
  add(1, 2);
}

int main(int argc, char **argv) {
  add(3, 4);
  return 0;
}
`
	an := analyze(t, src, "add")

	line := an.Usage.Direct[funcID(t, an, "read_line")]
	if line == nil || !line.Stdin || !line.Input || line.Output {
		t.Fatalf("read_line usage = %+v, want stdin+input", line)
	}
	if !reflect.DeepEqual(line.Reasons, []Reason{ReasonStdinReadPrimitive, ReasonStdinHandlePassed}) {
		t.Errorf("read_line reasons = %v", line.Reasons)
	}

	num := an.Usage.Direct[funcID(t, an, "read_num")]
	if num == nil || !num.Stdin || num.Input || !num.NeedsInputRecord() {
		t.Errorf("read_num usage = %+v, want stdin only", num)
	}

	compute := an.Usage.Direct[funcID(t, an, "compute")]
	if compute == nil || !compute.Output || compute.Reasons[len(compute.Reasons)-1] != ReasonCallsTestedFunction {
		t.Errorf("compute usage = %+v, want output", compute)
	}
	if _, ok := an.Usage.Direct[funcID(t, an, "add")]; ok {
		t.Error("add calls nothing and uses nothing")
	}
}

func TestPropagate(t *testing.T) {
	src := `
int a;
int b;

int leaf(void) { return a; }
int mid(void) { return b + leaf(); }
int top(void) { return mid(); }
int rec(int n) { return n ? rec(n - 1) + leaf() : 0; }

int main(int argc, char **argv) {
  return top() + rec(3);
}
`
	an := analyze(t, src)

	tests := []struct {
		fn   string
		want []string
	}{
		{"leaf", []string{"a"}},
		{"mid", []string{"b", "a"}},
		{"top", []string{"a", "b"}},
		{"rec", []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			got := globalNames(an, an.UsageOf(funcID(t, an, tt.fn)))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("globals of %s = %v, want %v", tt.fn, got, tt.want)
			}
		})
	}

	if u := an.UsageOf(funcID(t, an, "main")); !u.IsEmpty() {
		t.Errorf("entry point usage = %+v, want empty", u)
	}
}

func TestPropagateIdempotentOnDiamond(t *testing.T) {
	src := `
int g;
int d(void) { return g; }
int b(void) { return d(); }
int c(void) { return d(); }
int a(void) { return b() + c() + d(); }
int main(int argc, char **argv) { return a(); }
`
	an := analyze(t, src)
	got := globalNames(an, an.UsageOf(funcID(t, an, "a")))
	if !reflect.DeepEqual(got, []string{"g"}) {
		t.Errorf("globals of a = %v, want [g] once", got)
	}
}
