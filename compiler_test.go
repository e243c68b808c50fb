package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func runSource(t *testing.T, src string) (stdout string, status int) {
	t.Helper()
	result, err := Compile(context.Background(), []byte(src))
	require.NoError(t, err)

	var out bytes.Buffer
	vm := NewVM(result, WithStdout(&out))
	status, err = vm.Run(context.Background())
	require.NoError(t, err)
	return out.String(), status
}

func TestCompileHelloWorld(t *testing.T) {
	out, status := runSource(t, `
		int main() {
			printf("hello, %d\n", 42);
			return 0;
		}
	`)
	require.Equal(t, "hello, 42\n", out)
	require.Equal(t, 0, status)
}

func TestCompileRecursiveFactorial(t *testing.T) {
	out, status := runSource(t, `
		int fact(int n) {
			if (n <= 1) return 1;
			return n * fact(n - 1);
		}
		int main() {
			printf("%d\n", fact(6));
			return 0;
		}
	`)
	require.Equal(t, "720\n", out)
	require.Equal(t, 0, status)
}

func TestCompileWhileLoopSummation(t *testing.T) {
	out, status := runSource(t, `
		int main() {
			int i, sum;
			i = 1;
			sum = 0;
			while (i <= 10) {
				sum = sum + i;
				i = i + 1;
			}
			printf("%d\n", sum);
			return 0;
		}
	`)
	require.Equal(t, "55\n", out)
	require.Equal(t, 0, status)
}

func TestCompileSizeof(t *testing.T) {
	out, status := runSource(t, `
		int main() {
			printf("%d %d %d\n", sizeof(char), sizeof(int), sizeof(int *));
			return 0;
		}
	`)
	require.Equal(t, "1 8 8\n", out)
	require.Equal(t, 0, status)
}

func TestCompileNestedPointers(t *testing.T) {
	out, status := runSource(t, `
		int main() {
			int x;
			int *p;
			int **pp;
			x = 41;
			p = &x;
			pp = &p;
			**pp = **pp + 1;
			printf("%d\n", x);
			return 0;
		}
	`)
	require.Equal(t, "42\n", out)
	require.Equal(t, 0, status)
}

func TestCompileMultiArgPrintf(t *testing.T) {
	out, status := runSource(t, `
		int main() {
			printf("%d-%d-%d %s\n", 1, 2, 3, "ok");
			return 0;
		}
	`)
	require.Equal(t, "1-2-3 ok\n", out)
	require.Equal(t, 0, status)
}

func TestCompileEnumAndExitStatus(t *testing.T) {
	_, status := runSource(t, `
		enum { ZERO, ONE, TWO };
		int main() {
			return TWO;
		}
	`)
	require.Equal(t, 2, status)
}

func TestCompileIfElse(t *testing.T) {
	out, _ := runSource(t, `
		int main() {
			int x;
			x = 3;
			if (x > 5) {
				printf("big\n");
			} else {
				printf("small\n");
			}
			return 0;
		}
	`)
	require.Equal(t, "small\n", out)
}

func TestCompileLogicalShortCircuit(t *testing.T) {
	out, _ := runSource(t, `
		int main() {
			printf("%d %d %d %d\n", 1 || 0, 0 || 0, 1 && 1, 1 && 0);
			return 0;
		}
	`)
	require.Equal(t, "1 0 1 0\n", out)
}

func TestCompilePointerArithmeticOnArray(t *testing.T) {
	out, _ := runSource(t, `
		int main() {
			int *a;
			a = malloc(3 * sizeof(int));
			*a = 10;
			*(a + 1) = 20;
			*(a + 2) = 30;
			printf("%d %d %d\n", a[0], a[1], a[2]);
			free(a);
			return 0;
		}
	`)
	require.Equal(t, "10 20 30\n", out)
}

func TestCompileCharLiteralInExpression(t *testing.T) {
	out, status := runSource(t, `
		int main() {
			char c;
			c = 'x';
			if (c == 'x') {
				printf("match\n");
			}
			return 'a';
		}
	`)
	require.Equal(t, "match\n", out)
	require.Equal(t, int('a'), status)
}

func TestCompilePointerParameter(t *testing.T) {
	out, _ := runSource(t, `
		void bump(int *p) {
			*p = *p + 1;
		}
		int main() {
			int x;
			x = 9;
			bump(&x);
			printf("%d\n", x);
			return 0;
		}
	`)
	require.Equal(t, "10\n", out)
}

func TestCompileUndefinedIdentifierFails(t *testing.T) {
	_, err := Compile(context.Background(), []byte(`
		int main() {
			return undefined_name;
		}
	`))
	require.Error(t, err)
	var ce CompileError
	require.ErrorAs(t, err, &ce)
}

func TestCompileMissingMainFails(t *testing.T) {
	_, err := Compile(context.Background(), []byte(`
		int notmain() { return 0; }
	`))
	require.Error(t, err)
}
